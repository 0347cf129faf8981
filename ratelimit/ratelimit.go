// Package ratelimit provides per-source request pacing. A limiter is built
// once per adapter and injected at construction, never shared through a
// module-level singleton, so tests can hand each run a fresh limiter.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests for one source.
type Limiter struct {
	inner *rate.Limiter
}

// PerMinute creates a token-bucket limiter allowing n requests per minute
// with a burst of one, matching the conservative pacing the source feeds
// tolerate. n <= 0 disables pacing.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		return &Limiter{inner: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)}
}

// Wait blocks until the next request is allowed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}

// Allow reports whether a request may proceed right now without waiting.
func (l *Limiter) Allow() bool {
	return l.inner.Allow()
}
