// Package orchestrator fans one query out to every registered source
// concurrently, tolerates individual unit failures, and aborts the whole
// run only when the failure rate crosses the configured threshold.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tripscout/models"
	"tripscout/scraper"
	"tripscout/utils"
)

// Options configures one orchestrator.
type Options struct {
	// FailureThreshold is the fraction of units allowed to fail, in [0,1].
	// 0 means zero tolerance, 1 means never abort.
	FailureThreshold float64
	// UnitTimeout bounds each fetch unit; an expired unit counts as failed
	// and is never retried here (retries belong to the adapters).
	UnitTimeout time.Duration
	// MaxConcurrency bounds in-flight units.
	MaxConcurrency int
	// OnUnit, when set, receives one telemetry event per completed unit.
	OnUnit func(UnitEvent)
}

// UnitEvent is the per-unit completion telemetry emitted for external
// observers.
type UnitEvent struct {
	Source string
	Route  string
	Offers int
	Err    error
}

// ThresholdError is the single fatal error the acquisition stage produces:
// too many units failed for the partial result to be trusted. It carries
// the full run stats so callers can alert with real numbers.
type ThresholdError struct {
	Stats *models.RunStats
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("failure threshold exceeded: %d/%d units failed (%.1f%% > %.1f%%)",
		e.Stats.Failed, e.Stats.TotalUnits, e.Stats.FailureRate()*100, e.Stats.Threshold*100)
}

// Orchestrator coordinates the registered sources for one query at a time.
type Orchestrator struct {
	sources   []scraper.Source
	validator *scraper.Validator
	logger    *utils.Logger
	opts      Options
}

// New creates an Orchestrator over the given sources.
func New(sources []scraper.Source, validator *scraper.Validator, logger *utils.Logger, opts Options) *Orchestrator {
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 30 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	return &Orchestrator{sources: sources, validator: validator, logger: logger, opts: opts}
}

type unit struct {
	source scraper.Source
	query  scraper.UnitQuery
}

type unitResult struct {
	source string
	route  string
	offers []*models.Offer
	err    error
}

// Run fans the query out as one unit per source × origin × destination ×
// date range, gathers results, and returns the validated union of all
// offers plus stats. Stats are returned even when Run fails so the run can
// be persisted for observability either way.
func (o *Orchestrator) Run(ctx context.Context, query models.Query) ([]*models.Offer, *models.RunStats, error) {
	units := o.expand(query)

	stats := &models.RunStats{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		TotalUnits: len(units),
		Threshold:  o.opts.FailureThreshold,
		PerSource:  make(map[string]*models.SourceStats),
	}

	if len(units) == 0 {
		stats.FinishedAt = time.Now()
		return nil, stats, nil
	}

	o.logger.Info("[orchestrator] Run %s: %d units (%d sources × %d routes×ranges)",
		stats.RunID, len(units), len(o.sources), query.Units())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan unitResult, len(units))
	pool := utils.NewWorkerPool(o.opts.MaxConcurrency)

	for _, u := range units {
		u := u
		pool.Submit(runCtx, func() {
			results <- o.runUnit(runCtx, u)
		})
	}

	// Single-writer merge: only this loop touches stats and the union.
	var raw []*models.Offer
	cancelled := false

	for i := 0; i < len(units); i++ {
		res := <-results

		switch {
		case res.err == nil:
			stats.RecordSuccess(res.source, len(res.offers))
			raw = append(raw, res.offers...)
			o.logger.Info("[orchestrator] ✓ %s %s: %d offers", res.source, res.route, len(res.offers))
		case cancelled && errors.Is(res.err, context.Canceled):
			stats.Cancelled++
			o.logger.Debug("[orchestrator] ~ %s %s: cancelled", res.source, res.route)
		default:
			stats.RecordFailure(res.source, res.route, res.err.Error())
			o.logger.Error("[orchestrator] ✗ %s %s: %v", res.source, res.route, res.err)
		}

		if o.opts.OnUnit != nil {
			o.opts.OnUnit(UnitEvent{Source: res.source, Route: res.route, Offers: len(res.offers), Err: res.err})
		}

		// Once the failure rate exceeds the threshold it can only stay
		// above it, so waiting for the outstanding units would add latency
		// without changing the outcome. The breach is decided with the
		// exact same comparison as the final check below; a rate equal to
		// the threshold is not a breach and must never trigger
		// cancellation, or completed units' offers would be lost from a
		// run that goes on to succeed.
		if !cancelled && stats.FailureRate() > stats.Threshold {
			o.logger.Warn("[orchestrator] %d/%d units failed — cancelling outstanding units",
				stats.Failed, len(units))
			cancelled = true
			cancel()
		}
	}
	pool.Wait()

	union, dropped := o.validator.Clean(raw)
	stats.DroppedOffers = dropped
	stats.FinishedAt = time.Now()

	if stats.FailureRate() > stats.Threshold {
		return nil, stats, &ThresholdError{Stats: stats}
	}

	o.logger.Info("[orchestrator] Run %s complete: %d/%d units ok, %d offers (%d dropped), %.1fs",
		stats.RunID, stats.Succeeded, stats.TotalUnits, len(union), dropped,
		stats.FinishedAt.Sub(stats.StartedAt).Seconds())

	return union, stats, nil
}

func (o *Orchestrator) expand(query models.Query) []unit {
	var units []unit
	for _, src := range o.sources {
		for _, origin := range query.Origins {
			for _, dest := range query.Destinations {
				for _, dr := range query.DateRanges {
					units = append(units, unit{
						source: src,
						query: scraper.UnitQuery{
							Origin:      origin,
							Destination: dest,
							Departure:   dr.Departure,
							Return:      dr.Return,
						},
					})
				}
			}
		}
	}
	return units
}

// runUnit executes one fetch with its own timeout. Panics in an adapter are
// contained here so a misbehaving source can never take down its siblings.
func (o *Orchestrator) runUnit(ctx context.Context, u unit) (res unitResult) {
	res = unitResult{source: u.source.Name(), route: u.query.Route()}

	defer func() {
		if r := recover(); r != nil {
			res.offers = nil
			res.err = fmt.Errorf("adapter panic: %v", r)
		}
	}()

	unitCtx, cancel := context.WithTimeout(ctx, o.opts.UnitTimeout)
	defer cancel()

	offers, err := u.source.FetchOffers(unitCtx, u.query)
	if err != nil {
		// Report the run-level cancellation cause, not the adapter's
		// wrapped variant, so the merge loop can tell the two apart.
		if ctx.Err() != nil && unitCtx.Err() != context.DeadlineExceeded {
			res.err = context.Canceled
			return res
		}
		res.err = err
		return res
	}
	res.offers = offers
	return res
}
