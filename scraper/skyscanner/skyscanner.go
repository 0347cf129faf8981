// Package skyscanner implements the Skyscanner source with a headless
// browser, since the site has no public API.
package skyscanner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"tripscout/config"
	"tripscout/models"
	"tripscout/ratelimit"
	"tripscout/scraper"
	"tripscout/utils"
)

const (
	baseURL    = "https://www.skyscanner.net/transport/flights"
	sourceName = "skyscanner"
)

var priceRegexp = regexp.MustCompile(`[\d.,]+`)

// Scraper drives a headless browser against Skyscanner result pages.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	limiter *ratelimit.Limiter
	retry   *utils.RetryConfig
}

// New creates a ready-to-use Skyscanner scraper with an injected limiter.
func New(cfg *config.Config, logger *utils.Logger, limiter *ratelimit.Limiter) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		limiter: limiter,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Name implements scraper.Source.
func (s *Scraper) Name() string { return sourceName }

// FetchOffers implements scraper.Source.
func (s *Scraper) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("skyscanner: rate limit wait: %w", err)
	}

	chromeBin := findChromeBinary(s.cfg.ChromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	allocCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()

	pageURL := s.resultsURL(q)
	s.logger.Debug("[skyscanner] Fetching %s", pageURL)

	type cardData struct {
		Carrier    string `json:"carrier"`
		Price      string `json:"price"`
		DepartTime string `json:"departTime"`
		ReturnTime string `json:"returnTime"`
		Direct     bool   `json:"direct"`
		URL        string `json:"url"`
	}

	var cards []cardData

	err := s.retry.Do(ctx, "skyscanner-"+q.Route(), func() error {
		tabCtx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
		defer cancelTimeout()

		cards = nil
		return chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(6*time.Second),
			chromedp.Evaluate(`
				(function() {
					var results = [];
					var cards = document.querySelectorAll('[class*="FlightsTicket"], [data-testid="itinerary-card"]');
					for (var i = 0; i < cards.length && results.length < 25; i++) {
						var card = cards[i];
						var text = card.innerText || '';
						var lines = text.split('\n').map(function(l){return l.trim();}).filter(Boolean);

						var priceLine = lines.find(function(l){return l.match(/€\s*[\d.,]+/);}) || '';
						var carrierEl = card.querySelector('[class*="LogoImage"] img, [class*="AirlineLogo"] img');
						var carrier = carrierEl ? (carrierEl.alt || '') : '';
						if (!carrier) {
							carrier = lines.find(function(l){return l.match(/^[A-Za-z][A-Za-z ]{2,30}$/);}) || '';
						}
						var times = lines.filter(function(l){return l.match(/^\d{1,2}:\d{2}$/);});
						var direct = text.toLowerCase().indexOf('direct') >= 0 ||
						             text.toLowerCase().indexOf('nonstop') >= 0;
						var linkEl = card.querySelector('a[href]');

						results.push({
							carrier:    carrier,
							price:      priceLine,
							departTime: times[0] || '',
							returnTime: times[2] || '',
							direct:     direct,
							url:        linkEl ? linkEl.href : ''
						});
					}
					return results;
				})()
			`, &cards),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("skyscanner: page fetch: %w", err)
	}

	s.logger.Debug("[skyscanner] %s — %d cards", q.Route(), len(cards))

	offers := make([]*models.Offer, 0, len(cards))
	for _, c := range cards {
		price, ok := parsePrice(c.Price)
		if !ok {
			continue
		}
		bookingRef := c.URL
		if bookingRef == "" {
			bookingRef = pageURL
		}

		o := &models.Offer{
			Origin:           q.Origin,
			Destination:      q.Destination,
			Carrier:          strings.TrimSpace(c.Carrier),
			DepartureDate:    q.Departure.Truncate(24 * time.Hour),
			DepartureTime:    c.DepartTime,
			PricePerTraveler: price,
			TotalPrice:       price * float64(s.cfg.Travelers),
			Direct:           c.Direct,
			FareClass:        "Economy",
			Source:           sourceName,
			BookingRef:       bookingRef,
			ObservedAt:       time.Now(),
		}
		if !q.Return.IsZero() {
			o.ReturnDate = q.Return.Truncate(24 * time.Hour)
			o.ReturnTime = c.ReturnTime
		}
		offers = append(offers, o)
	}

	return offers, nil
}

// resultsURL builds the route results page, dates in Skyscanner's yymmdd form.
func (s *Scraper) resultsURL(q scraper.UnitQuery) string {
	u := fmt.Sprintf("%s/%s/%s/%s/",
		baseURL, strings.ToLower(q.Origin), strings.ToLower(q.Destination),
		q.Departure.Format("060102"))
	if !q.Return.IsZero() {
		u = fmt.Sprintf("%s%s/", u, q.Return.Format("060102"))
	}
	return fmt.Sprintf("%s?adults=%d&currency=EUR", u, s.cfg.Travelers)
}

// parsePrice extracts a per-traveler euro amount from card text like
// "€ 1.234,56" or "€123".
func parsePrice(raw string) (float64, bool) {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0, false
	}
	// Continental formatting: dots group thousands, comma is the decimal.
	if strings.Contains(match, ",") {
		match = strings.ReplaceAll(match, ".", "")
		match = strings.Replace(match, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
