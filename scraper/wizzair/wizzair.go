// Package wizzair implements the WizzAir search source against the
// airline's unofficial JSON API. The endpoint is not a stable contract; if
// fetches start failing wholesale, inspect the site's network traffic for
// the current request shape.
package wizzair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tripscout/config"
	"tripscout/models"
	"tripscout/ratelimit"
	"tripscout/scraper"
	"tripscout/utils"
)

const (
	defaultBaseURL = "https://be.wizzair.com/Api/search/search"
	sourceName     = "wizzair"
	carrierName    = "Wizz Air"
)

// Client talks to the WizzAir search API.
type Client struct {
	baseURL   string
	travelers int
	http      *http.Client
	limiter   *ratelimit.Limiter
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

// New creates a ready-to-use WizzAir client with an injected limiter.
func New(cfg *config.Config, logger *utils.Logger, limiter *ratelimit.Limiter) *Client {
	return &Client{
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

type flightListEntry struct {
	DepartureStation string `json:"departureStation"`
	ArrivalStation   string `json:"arrivalStation"`
	From             string `json:"from"`
	To               string `json:"to"`
}

type searchPayload struct {
	FlightList []flightListEntry `json:"flightList"`
	AdultCount int               `json:"adultCount"`
	ChildCount int               `json:"childCount"`
}

type apiFlight struct {
	Price struct {
		Amount       float64 `json:"amount"`
		CurrencyCode string  `json:"currencyCode"`
	} `json:"price"`
	DepartureDates string `json:"departureDates"`
	FlightNumber   string `json:"flightNumber"`
}

type searchResponse struct {
	OutboundFlights []apiFlight `json:"outboundFlights"`
	ReturnFlights   []apiFlight `json:"returnFlights"`
}

// FetchOffers implements scraper.Source.
func (c *Client) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wizzair: rate limit wait: %w", err)
	}

	payload := searchPayload{
		FlightList: []flightListEntry{{
			DepartureStation: q.Origin,
			ArrivalStation:   q.Destination,
			From:             q.Departure.Format("2006-01-02"),
			To:               q.Departure.Format("2006-01-02"),
		}},
		AdultCount: c.travelers,
	}
	if !q.Return.IsZero() {
		payload.FlightList = append(payload.FlightList, flightListEntry{
			DepartureStation: q.Destination,
			ArrivalStation:   q.Origin,
			From:             q.Return.Format("2006-01-02"),
			To:               q.Return.Format("2006-01-02"),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wizzair: encode payload: %w", err)
	}

	var resp searchResponse
	err = c.retry.Do(ctx, "wizzair-search-"+q.Route(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("wizzair: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("wizzair: request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("wizzair: rate limited by upstream")
		}
		if res.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return fmt.Errorf("wizzair: status %d: %s", res.StatusCode, b)
		}

		resp = searchResponse{}
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return fmt.Errorf("wizzair: decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.parse(resp, q), nil
}

// parse combines every outbound with every return flight for round trips,
// pricing each pairing as the sum of its legs.
func (c *Client) parse(resp searchResponse, q scraper.UnitQuery) []*models.Offer {
	var offers []*models.Offer

	for _, out := range resp.OutboundFlights {
		dep, ok := parseISO(out.DepartureDates)
		if !ok {
			c.logger.Warn("[wizzair] Unparseable departure %q skipped (%s)", out.DepartureDates, q.Route())
			continue
		}

		if q.Return.IsZero() || len(resp.ReturnFlights) == 0 {
			offers = append(offers, c.offer(q, dep, time.Time{}, out.Price.Amount))
			continue
		}

		for _, ret := range resp.ReturnFlights {
			retDep, ok := parseISO(ret.DepartureDates)
			if !ok {
				continue
			}
			offers = append(offers, c.offer(q, dep, retDep, out.Price.Amount+ret.Price.Amount))
		}
	}

	return offers
}

func (c *Client) offer(q scraper.UnitQuery, dep, ret time.Time, perTraveler float64) *models.Offer {
	o := &models.Offer{
		Origin:           q.Origin,
		Destination:      q.Destination,
		Carrier:          carrierName,
		DepartureDate:    dep.Truncate(24 * time.Hour),
		DepartureTime:    dep.Format("15:04"),
		PricePerTraveler: perTraveler,
		TotalPrice:       perTraveler * float64(c.travelers),
		Direct:           true, // the search API only quotes nonstop rotations
		FareClass:        "Basic",
		Source:           sourceName,
		BookingRef: fmt.Sprintf("https://wizzair.com/#/booking/select-flight/%s/%s/%s",
			q.Origin, q.Destination, dep.Format("2006-01-02")),
		ObservedAt: time.Now(),
	}
	if !ret.IsZero() {
		o.ReturnDate = ret.Truncate(24 * time.Hour)
		o.ReturnTime = ret.Format("15:04")
	}
	return o
}

func parseISO(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
