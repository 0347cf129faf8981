// Package cache is an optional redis-backed fingerprint store that lets
// repeated runs skip canonical offers they have already pushed downstream.
// Without redis the pipeline simply processes everything every run.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tripscout/models"
	"tripscout/utils"
)

const keyPrefix = "tripscout:offer:"

// OfferCache marks canonical offer fingerprints as seen with a TTL.
type OfferCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// New connects to redis at addr. An empty addr disables the cache; a nil
// *OfferCache is safe to call, every method degrades to a no-op.
func New(addr string, ttl time.Duration, logger *utils.Logger) (*OfferCache, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping %q: %w", addr, err)
	}

	return &OfferCache{client: client, ttl: ttl, logger: logger}, nil
}

// FilterUnseen returns the offers whose fingerprints are not in the cache.
// Redis errors degrade to "nothing cached" rather than failing the run.
func (c *OfferCache) FilterUnseen(ctx context.Context, offers []*models.CanonicalOffer) []*models.CanonicalOffer {
	if c == nil || len(offers) == 0 {
		return offers
	}

	keys := make([]string, len(offers))
	for i, o := range offers {
		keys[i] = keyPrefix + o.Key
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("[cache] MGET failed, treating all offers as unseen: %v", err)
		return offers
	}

	unseen := make([]*models.CanonicalOffer, 0, len(offers))
	for i, v := range vals {
		if v == nil {
			unseen = append(unseen, offers[i])
		}
	}

	if hits := len(offers) - len(unseen); hits > 0 {
		c.logger.Info("[cache] %d offers already seen, %d new", hits, len(unseen))
	}
	return unseen
}

// MarkSeen records the offers' fingerprints with the configured TTL.
func (c *OfferCache) MarkSeen(ctx context.Context, offers []*models.CanonicalOffer) {
	if c == nil || len(offers) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for _, o := range offers {
		pipe.Set(ctx, keyPrefix+o.Key, "1", c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("[cache] Failed to record %d fingerprints: %v", len(offers), err)
	}
}

// Close releases the redis connection.
func (c *OfferCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
