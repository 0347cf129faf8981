// Package kiwi implements the Kiwi (Tequila) flight search API source.
package kiwi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tripscout/config"
	"tripscout/models"
	"tripscout/ratelimit"
	"tripscout/scraper"
	"tripscout/utils"
)

const (
	defaultBaseURL = "https://api.tequila.kiwi.com"
	searchEndpoint = "/v2/search"
	sourceName     = "kiwi"
)

// Client talks to the Kiwi search API.
type Client struct {
	apiKey    string
	baseURL   string
	travelers int
	http      *http.Client
	limiter   *ratelimit.Limiter
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

// New creates a ready-to-use Kiwi client. The limiter is injected so every
// run (and every test) gets its own pacing state.
func New(cfg *config.Config, logger *utils.Logger, limiter *ratelimit.Limiter) *Client {
	return &Client{
		apiKey:    cfg.KiwiAPIKey,
		baseURL:   defaultBaseURL,
		travelers: cfg.Travelers,
		http:      &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Name implements scraper.Source.
func (c *Client) Name() string { return sourceName }

type searchResponse struct {
	Data []struct {
		Price        float64 `json:"price"`
		DeepLink     string  `json:"deep_link"`
		BookingToken string  `json:"booking_token"`
		Route        []leg   `json:"route"`
	} `json:"data"`
}

type leg struct {
	FlyFrom  string `json:"flyFrom"`
	FlyTo    string `json:"flyTo"`
	Airline  string `json:"airline"`
	DTimeUTC int64  `json:"dTimeUTC"`
	ATimeUTC int64  `json:"aTimeUTC"`
	Return   int    `json:"return"` // 0 = outbound leg, 1 = return leg
}

// FetchOffers implements scraper.Source.
func (c *Client) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("kiwi: no API key configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("kiwi: rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("fly_from", q.Origin)
	params.Set("fly_to", q.Destination)
	params.Set("date_from", q.Departure.Format("02/01/2006"))
	params.Set("date_to", q.Departure.Format("02/01/2006"))
	params.Set("adults", strconv.Itoa(c.travelers))
	params.Set("curr", "EUR")
	params.Set("max_stopovers", "0")
	params.Set("limit", "50")
	if !q.Return.IsZero() {
		params.Set("return_from", q.Return.Format("02/01/2006"))
		params.Set("return_to", q.Return.Format("02/01/2006"))
		params.Set("flight_type", "round")
	} else {
		params.Set("flight_type", "oneway")
	}

	var resp searchResponse
	err := c.retry.Do(ctx, "kiwi-search-"+q.Route(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+searchEndpoint+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("kiwi: build request: %w", err)
		}
		req.Header.Set("apikey", c.apiKey)

		res, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("kiwi: request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return fmt.Errorf("kiwi: status %d: %s", res.StatusCode, body)
		}

		resp = searchResponse{}
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return fmt.Errorf("kiwi: decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.parse(resp, q), nil
}

func (c *Client) parse(resp searchResponse, q scraper.UnitQuery) []*models.Offer {
	offers := make([]*models.Offer, 0, len(resp.Data))

	for _, item := range resp.Data {
		var outbound, inbound *leg
		outboundLegs, returnLegs := 0, 0
		for i := range item.Route {
			l := &item.Route[i]
			if l.Return == 0 {
				outboundLegs++
				if outbound == nil {
					outbound = l
				}
			} else {
				returnLegs++
				if inbound == nil {
					inbound = l
				}
			}
		}
		if outbound == nil {
			c.logger.Warn("[kiwi] Itinerary without outbound leg skipped (%s)", q.Route())
			continue
		}

		dep := time.Unix(outbound.DTimeUTC, 0).UTC()

		bookingRef := item.DeepLink
		if bookingRef == "" {
			bookingRef = "https://www.kiwi.com/booking?token=" + item.BookingToken
		}

		offer := &models.Offer{
			Origin:           outbound.FlyFrom,
			Destination:      outbound.FlyTo,
			Carrier:          outbound.Airline,
			DepartureDate:    dep.Truncate(24 * time.Hour),
			DepartureTime:    dep.Format("15:04"),
			PricePerTraveler: item.Price / float64(c.travelers),
			TotalPrice:       item.Price,
			Direct:           outboundLegs == 1 && returnLegs <= 1,
			FareClass:        "Economy",
			Source:           sourceName,
			BookingRef:       bookingRef,
			ObservedAt:       time.Now(),
		}
		if inbound != nil {
			ret := time.Unix(inbound.DTimeUTC, 0).UTC()
			offer.ReturnDate = ret.Truncate(24 * time.Hour)
			offer.ReturnTime = ret.Format("15:04")
		}
		offers = append(offers, offer)
	}

	return offers
}
