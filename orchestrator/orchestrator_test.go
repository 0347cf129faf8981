package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tripscout/models"
	"tripscout/scraper"
	"tripscout/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger(false) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeSource returns canned offers or a canned error for every unit.
type fakeSource struct {
	name   string
	offers int
	err    error
	delay  time.Duration
	calls  int64
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	atomic.AddInt64(&f.calls, 1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make([]*models.Offer, f.offers)
	for i := range out {
		out[i] = &models.Offer{
			Origin:           q.Origin,
			Destination:      q.Destination,
			Carrier:          "Ryanair",
			DepartureDate:    q.Departure,
			DepartureTime:    "10:00",
			ReturnDate:       q.Return,
			ReturnTime:       "18:00",
			PricePerTraveler: 100,
			TotalPrice:       400,
			Source:           f.name,
			BookingRef:       fmt.Sprintf("%s-%s-%d", f.name, q.Route(), i),
			ObservedAt:       time.Now(),
		}
	}
	return out, nil
}

func singleRouteQuery() models.Query {
	return models.Query{
		Origins:      []string{"MUC"},
		Destinations: []string{"LIS"},
		DateRanges: []models.DateRange{
			{Departure: day("2026-10-12"), Return: day("2026-10-19")},
		},
	}
}

func newTestOrchestrator(sources []scraper.Source, threshold float64) *Orchestrator {
	return New(sources, scraper.NewValidator(4, newTestLogger()), newTestLogger(), Options{
		FailureThreshold: threshold,
		UnitTimeout:      5 * time.Second,
		MaxConcurrency:   4,
	})
}

func TestRunSucceedsAtFailureBoundary(t *testing.T) {
	// 2 of 4 units fail with a 50% threshold: the rate equals the threshold
	// but does not exceed it, so the partial union is returned.
	sources := []scraper.Source{
		&fakeSource{name: "a", offers: 10},
		&fakeSource{name: "b", offers: 12},
		&fakeSource{name: "c", err: errors.New("boom")},
		&fakeSource{name: "d", err: errors.New("boom")},
	}

	o := newTestOrchestrator(sources, 0.5)
	offers, stats, err := o.Run(context.Background(), singleRouteQuery())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(offers) != 22 {
		t.Errorf("offers: got %d, want 22", len(offers))
	}
	if stats.Succeeded != 2 || stats.Failed != 2 {
		t.Errorf("stats: %d succeeded / %d failed, want 2/2", stats.Succeeded, stats.Failed)
	}
	if stats.FailureRate() != 0.5 {
		t.Errorf("failure rate: got %.2f, want 0.50", stats.FailureRate())
	}
}

func TestRunAbortsAboveThreshold(t *testing.T) {
	// 3 of 4 units fail with a 50% threshold: no partial list, a
	// ThresholdError carrying the run stats.
	sources := []scraper.Source{
		&fakeSource{name: "a", offers: 3},
		&fakeSource{name: "b", err: errors.New("boom")},
		&fakeSource{name: "c", err: errors.New("boom")},
		&fakeSource{name: "d", err: errors.New("boom")},
	}

	o := newTestOrchestrator(sources, 0.5)
	offers, stats, err := o.Run(context.Background(), singleRouteQuery())

	var te *ThresholdError
	if !errors.As(err, &te) {
		t.Fatalf("expected ThresholdError, got %v", err)
	}
	if offers != nil {
		t.Errorf("no offer list should be returned on abort, got %d offers", len(offers))
	}
	if stats == nil {
		t.Fatal("stats must be returned even on abort")
	}
	if te.Stats.Failed < 3 || te.Stats.TotalUnits != 4 {
		t.Errorf("stats: %d/%d failed, want at least 3/4", te.Stats.Failed, te.Stats.TotalUnits)
	}
	if te.Stats.FailureRate() <= 0.5 {
		t.Errorf("failure rate %.2f should exceed the 0.50 threshold", te.Stats.FailureRate())
	}
}

func TestRunCancelsOutstandingUnitsOnAbort(t *testing.T) {
	// Three immediate failures push the run past the threshold while the
	// slow source is still in flight; it should be cancelled, not awaited.
	slow := &fakeSource{name: "slow", offers: 1, delay: 30 * time.Second}
	sources := []scraper.Source{
		&fakeSource{name: "a", err: errors.New("boom")},
		&fakeSource{name: "b", err: errors.New("boom")},
		&fakeSource{name: "c", err: errors.New("boom")},
		slow,
	}

	o := newTestOrchestrator(sources, 0.5)

	start := time.Now()
	_, stats, err := o.Run(context.Background(), singleRouteQuery())
	elapsed := time.Since(start)

	var te *ThresholdError
	if !errors.As(err, &te) {
		t.Fatalf("expected ThresholdError, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("run took %v; outstanding units were not cancelled", elapsed)
	}
	if stats.Failed+stats.Cancelled != 4 {
		t.Errorf("failed(%d) + cancelled(%d) should cover all 4 units",
			stats.Failed, stats.Cancelled)
	}
}

// flakySource fails its first failN calls instantly and answers the rest
// with one offer each after a delay.
type flakySource struct {
	name  string
	failN int64
	delay time.Duration
	calls int64
}

func (f *flakySource) Name() string { return f.name }

func (f *flakySource) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	if atomic.AddInt64(&f.calls, 1) <= f.failN {
		return nil, errors.New("boom")
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []*models.Offer{{
		Origin:           q.Origin,
		Destination:      q.Destination,
		Carrier:          "Ryanair",
		DepartureDate:    q.Departure,
		DepartureTime:    "10:00",
		ReturnDate:       q.Return,
		ReturnTime:       "18:00",
		PricePerTraveler: 100,
		TotalPrice:       400,
		Source:           f.name,
		BookingRef:       "ref-" + q.Route(),
		ObservedAt:       time.Now(),
	}}, nil
}

func TestRunKeepsOutstandingUnitsAtExactBoundary(t *testing.T) {
	// 29 failures out of 100 units at a 0.29 threshold is a failure rate
	// exactly equal to the threshold, not above it. The float product
	// 0.29 × 100 lands just below 29, so deciding the breach by truncating
	// that product would cancel the 71 in-flight units one failure too
	// early and return a success with their offers silently missing. The
	// fast failures land first; every slow unit must still complete and
	// contribute its offer.
	origins := make([]string, 10)
	dests := make([]string, 10)
	for i := 0; i < 10; i++ {
		origins[i] = fmt.Sprintf("A%cA", rune('A'+i))
		dests[i] = fmt.Sprintf("B%cA", rune('A'+i))
	}
	query := models.Query{
		Origins:      origins,
		Destinations: dests,
		DateRanges: []models.DateRange{
			{Departure: day("2026-10-12"), Return: day("2026-10-19")},
		},
	}

	src := &flakySource{name: "flaky", failN: 29, delay: 300 * time.Millisecond}
	o := New([]scraper.Source{src}, scraper.NewValidator(4, newTestLogger()), newTestLogger(), Options{
		FailureThreshold: 0.29,
		UnitTimeout:      10 * time.Second,
		MaxConcurrency:   100,
	})

	offers, stats, err := o.Run(context.Background(), query)
	if err != nil {
		t.Fatalf("Run returned error at the exact boundary: %v", err)
	}
	if stats.Cancelled != 0 {
		t.Errorf("cancelled units: got %d, want 0", stats.Cancelled)
	}
	if stats.Failed != 29 || stats.Succeeded != 71 {
		t.Errorf("stats: %d failed / %d succeeded, want 29/71", stats.Failed, stats.Succeeded)
	}
	if len(offers) != 71 {
		t.Errorf("offers: got %d, want all 71", len(offers))
	}
}

func TestRunTimesOutSlowUnit(t *testing.T) {
	sources := []scraper.Source{
		&fakeSource{name: "fast", offers: 2},
		&fakeSource{name: "slow", offers: 1, delay: 10 * time.Second},
	}

	o := New(sources, scraper.NewValidator(4, newTestLogger()), newTestLogger(), Options{
		FailureThreshold: 0.5,
		UnitTimeout:      100 * time.Millisecond,
		MaxConcurrency:   4,
	})

	offers, stats, err := o.Run(context.Background(), singleRouteQuery())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(offers) != 2 {
		t.Errorf("offers: got %d, want 2 from the fast source", len(offers))
	}
	if stats.Failed != 1 {
		t.Errorf("timed-out unit should count as failed, got %d failed", stats.Failed)
	}
}

func TestRunContainsAdapterPanic(t *testing.T) {
	sources := []scraper.Source{
		&fakeSource{name: "ok", offers: 2},
		&panicSource{},
	}

	o := newTestOrchestrator(sources, 0.5)
	offers, stats, err := o.Run(context.Background(), singleRouteQuery())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(offers) != 2 {
		t.Errorf("offers: got %d, want 2", len(offers))
	}
	if stats.Failed != 1 {
		t.Errorf("panicking unit should count as failed, got %d", stats.Failed)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 unit error, got %d", len(stats.Errors))
	}
}

type panicSource struct{}

func (p *panicSource) Name() string { return "panicky" }

func (p *panicSource) FetchOffers(ctx context.Context, q scraper.UnitQuery) ([]*models.Offer, error) {
	panic("adapter bug")
}

func TestRunExpandsUnitsPerSourceRouteRange(t *testing.T) {
	a := &fakeSource{name: "a", offers: 1}
	b := &fakeSource{name: "b", offers: 1}

	query := models.Query{
		Origins:      []string{"MUC", "FMM"},
		Destinations: []string{"LIS"},
		DateRanges: []models.DateRange{
			{Departure: day("2026-10-12"), Return: day("2026-10-19")},
			{Departure: day("2026-12-20"), Return: day("2026-12-27")},
		},
	}

	o := newTestOrchestrator([]scraper.Source{a, b}, 0.5)
	_, stats, err := o.Run(context.Background(), query)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 2 sources × 2 origins × 1 destination × 2 ranges.
	if stats.TotalUnits != 8 {
		t.Errorf("total units: got %d, want 8", stats.TotalUnits)
	}
	if atomic.LoadInt64(&a.calls) != 4 || atomic.LoadInt64(&b.calls) != 4 {
		t.Errorf("calls: a=%d b=%d, want 4 each", a.calls, b.calls)
	}
}

func TestRunEmptyQuery(t *testing.T) {
	o := newTestOrchestrator([]scraper.Source{&fakeSource{name: "a", offers: 1}}, 0.5)

	offers, stats, err := o.Run(context.Background(), models.Query{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(offers) != 0 || stats.TotalUnits != 0 {
		t.Errorf("empty query should produce nothing, got %d offers / %d units",
			len(offers), stats.TotalUnits)
	}
}

func TestRunPerSourceStats(t *testing.T) {
	sources := []scraper.Source{
		&fakeSource{name: "good", offers: 4},
		&fakeSource{name: "bad", err: errors.New("503")},
	}

	o := newTestOrchestrator(sources, 0.5)
	_, stats, err := o.Run(context.Background(), singleRouteQuery())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	good := stats.PerSource["good"]
	if good == nil || good.Succeeded != 1 || good.Offers != 4 {
		t.Errorf("good source stats: %+v", good)
	}
	bad := stats.PerSource["bad"]
	if bad == nil || bad.Failed != 1 {
		t.Errorf("bad source stats: %+v", bad)
	}
}
