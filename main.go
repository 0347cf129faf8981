package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tripscout/assembler"
	"tripscout/cache"
	"tripscout/config"
	"tripscout/costmodel"
	"tripscout/holidays"
	"tripscout/models"
	"tripscout/orchestrator"
	"tripscout/ratelimit"
	"tripscout/reconcile"
	"tripscout/refdata"
	"tripscout/report"
	"tripscout/scraper"
	"tripscout/scraper/kiwi"
	"tripscout/scraper/skyscanner"
	"tripscout/scraper/wizzair"
	"tripscout/storage"
	"tripscout/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.Verbose)

	logger.Info("=== TripScout flight-deal pipeline starting ===")
	logger.Info("Config — sources: %v | origins: %v | destinations: %v | threshold: %.0f%%",
		cfg.EnabledSources, cfg.Origins, cfg.Destinations, cfg.FailureThreshold*100)

	airports, err := refdata.LoadTable(cfg.AirportsPath)
	if err != nil {
		logger.Error("Failed to load airport table: %v", err)
		os.Exit(1)
	}
	logger.Info("Airport reference table: %d entries", airports.Len())

	calendar, err := holidays.Load(cfg.HolidaysPath)
	if err != nil {
		logger.Error("Failed to load holiday calendar: %v", err)
		os.Exit(1)
	}

	pg, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	var store storage.Store = pg
	defer store.Close()

	offerCache, err := cache.New(cfg.RedisAddr, 24*time.Hour, logger)
	if err != nil {
		logger.Warn("Offer cache unavailable, continuing without it: %v", err)
	}
	defer offerCache.Close()

	sources := buildSources(cfg, logger)
	if len(sources) == 0 {
		logger.Error("No sources enabled. Check the SOURCES setting.")
		os.Exit(1)
	}

	validator := scraper.NewValidator(cfg.Travelers, logger)
	orch := orchestrator.New(sources, validator, logger, orchestrator.Options{
		FailureThreshold: cfg.FailureThreshold,
		UnitTimeout:      time.Duration(cfg.UnitTimeoutSec) * time.Second,
		MaxConcurrency:   cfg.MaxConcurrency,
	})

	ctx := context.Background()
	query := buildQuery(cfg, calendar)

	offers, stats, err := orch.Run(ctx, query)

	// The run record is written win or lose, so threshold aborts stay
	// visible alongside successful runs.
	if stats != nil {
		if saveErr := store.SaveRun(stats); saveErr != nil {
			logger.Error("Failed to persist run record: %v", saveErr)
		}
	}

	if err != nil {
		var te *orchestrator.ThresholdError
		if errors.As(err, &te) {
			logger.Error("Acquisition aborted: %v", te)
			for src, st := range stats.PerSource {
				if st.Failed > 0 {
					logger.Error("  %s: %d failed units", src, st.Failed)
				}
			}
		} else {
			logger.Error("Acquisition failed: %v", err)
		}
		os.Exit(1)
	}

	if len(offers) == 0 {
		logger.Error("No offers survived validation. Exiting.")
		os.Exit(1)
	}

	logger.Info("Acquired %d validated offers — writing raw dump...", len(offers))
	if csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath); err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
	} else {
		dumpRaw(csvWriter, cfg.CSVOutputPath, offers, logger)
	}

	reconciler := reconcile.New(cfg.DedupWindowHours, logger)
	canonical := reconciler.Dedup(offers)

	if err := store.SaveOffers(stats.RunID, canonical); err != nil {
		logger.Error("Failed to persist canonical offers: %v", err)
	}

	fresh := offerCache.FilterUnseen(ctx, canonical)

	model := costmodel.New(airports, costmodel.Options{
		BagFee:             cfg.BagFee,
		FuelRatePerKm:      cfg.FuelRatePerKm,
		HourlyValue:        cfg.HourlyValue,
		FoodPerNight:       cfg.FoodPerNight,
		ActivitiesPerNight: cfg.ActivitiesPerNight,
	})
	for _, c := range fresh {
		b := model.Price(c, cfg.Travelers, cfg.Bags)
		c.Cost = &b
	}

	lodging, err := store.FetchLodging()
	if err != nil {
		logger.Error("Failed to fetch lodging inventory: %v", err)
		os.Exit(1)
	}
	logger.Info("Lodging inventory: %d options", len(lodging))

	persisted, err := store.PackageKeys()
	if err != nil {
		logger.Error("Failed to load package index: %v", err)
		os.Exit(1)
	}

	asm := assembler.New(model, airports, logger)
	opts := assembler.Options{
		BudgetCeiling: cfg.BudgetCeiling,
		MinNights:     cfg.MinNights,
		MaxNights:     cfg.MaxNights,
		Travelers:     cfg.Travelers,
		Bags:          cfg.Bags,
	}
	if cfg.FilterHolidays {
		opts.Calendar = calendar.Predicate()
	}
	packages, asmStats := asm.Assemble(fresh, lodging, keyIndex(persisted), opts)

	if err := store.SavePackages(packages); err != nil {
		logger.Error("Failed to persist packages: %v", err)
		os.Exit(1)
	}
	offerCache.MarkSeen(ctx, fresh)

	reporter := report.NewReporter(logger)
	reporter.Print(&report.Summary{
		Stats:     stats,
		Canonical: len(canonical),
		Packages:  packages,
		Assembly:  asmStats,
	})

	fmt.Printf("  Done. Raw CSV → %s | %d packages → PostgreSQL (packages table)\n\n",
		cfg.CSVOutputPath, len(packages))
}

// buildSources instantiates every enabled adapter with its own rate limiter.
// Kiwi requires an API key and is skipped with a warning without one.
func buildSources(cfg *config.Config, logger *utils.Logger) []scraper.Source {
	var sources []scraper.Source
	for _, name := range cfg.EnabledSources {
		limiter := ratelimit.PerMinute(cfg.SourcePerMinute)
		switch name {
		case "kiwi":
			if cfg.KiwiAPIKey == "" {
				logger.Warn("Kiwi source enabled but KIWI_API_KEY is empty, skipping")
				continue
			}
			sources = append(sources, kiwi.New(cfg, logger, limiter))
		case "wizzair":
			sources = append(sources, wizzair.New(cfg, logger, limiter))
		case "skyscanner":
			sources = append(sources, skyscanner.New(cfg, logger, limiter))
		default:
			logger.Warn("Unknown source %q in SOURCES, skipping", name)
		}
	}
	return sources
}

// buildQuery derives the travel windows from the holiday calendar when it
// has any, otherwise searches a default window a month out.
func buildQuery(cfg *config.Config, calendar *holidays.Calendar) models.Query {
	q := models.Query{
		Origins:      cfg.Origins,
		Destinations: cfg.Destinations,
	}

	for _, w := range calendar.DateRanges() {
		q.DateRanges = append(q.DateRanges, models.DateRange{Departure: w[0], Return: w[1]})
	}
	if len(q.DateRanges) == 0 {
		dep := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
		q.DateRanges = append(q.DateRanges, models.DateRange{
			Departure: dep,
			Return:    dep.AddDate(0, 0, 7),
		})
	}
	return q
}

func dumpRaw(w storage.RawOfferWriter, path string, offers []*models.Offer, logger *utils.Logger) {
	defer w.Close()

	if err := w.WriteRaw(offers); err != nil {
		logger.Error("CSV write failed: %v", err)
		return
	}
	logger.Info("Raw offers saved to %s", path)
}

// keyIndex adapts the persisted key set to the assembler's index interface.
type keyIndex map[string]struct{}

func (k keyIndex) Contains(key string) bool {
	_, ok := k[key]
	return ok
}
