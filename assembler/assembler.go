// Package assembler cross-joins priced canonical offers with lodging in
// the same destination and keeps the combinations that survive the budget,
// duration, and calendar filters.
package assembler

import (
	"fmt"
	"sort"
	"time"

	"tripscout/costmodel"
	"tripscout/models"
	"tripscout/refdata"
	"tripscout/utils"
)

// PackageIndex answers whether an (offer, lodging) pair already exists in
// the persisted store, so repeated assembler runs over unchanged inputs do
// not create duplicate package records.
type PackageIndex interface {
	Contains(key string) bool
}

// Options configures one assembly run.
type Options struct {
	BudgetCeiling float64
	MinNights     int
	MaxNights     int
	Travelers     int
	Bags          int
	// Calendar is the opaque eligibility predicate over departure dates;
	// nil disables calendar filtering.
	Calendar func(time.Time) bool
}

// Stats is the assembly run telemetry. Destinations with offers but no
// lodging are not errors, but they are a signal worth surfacing, so they
// are listed here rather than silently skipped.
type Stats struct {
	Destinations     int
	NoLodging        []string
	OneWaySkipped    int
	PairsTried       int
	RejectedNights   int
	RejectedBudget   int
	RejectedCalendar int
	Duplicates       int
	Created          int
}

// Assembler builds packages. Stateless across runs; everything it needs is
// passed into Assemble.
type Assembler struct {
	model    *costmodel.Model
	airports *refdata.Table
	logger   *utils.Logger
}

// New creates an Assembler pricing packages with the given model.
func New(model *costmodel.Model, airports *refdata.Table, logger *utils.Logger) *Assembler {
	return &Assembler{model: model, airports: airports, logger: logger}
}

// Assemble returns every valid package for the given offers and lodging.
// Every returned package satisfies total ≤ budget ceiling and minNights ≤
// nights ≤ maxNights; pairs already present in the index are dropped.
func (a *Assembler) Assemble(offers []*models.CanonicalOffer, lodging []*models.LodgingOption, index PackageIndex, opts Options) ([]*models.Package, *Stats) {
	stats := &Stats{}

	lodgingByCity := make(map[string][]*models.LodgingOption)
	for _, l := range lodging {
		lodgingByCity[l.City] = append(lodgingByCity[l.City], l)
	}

	// Group by destination before the cross-join so the search space is
	// city-local instead of a global offers × lodgings product.
	offersByCity := make(map[string][]*models.CanonicalOffer)
	for _, o := range offers {
		city := a.airports.City(o.Destination)
		offersByCity[city] = append(offersByCity[city], o)
	}

	cities := make([]string, 0, len(offersByCity))
	for city := range offersByCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	seen := utils.NewStringSet()
	var packages []*models.Package

	for _, city := range cities {
		stats.Destinations++
		cityOffers := offersByCity[city]
		cityLodging := lodgingByCity[city]

		if len(cityLodging) == 0 {
			stats.NoLodging = append(stats.NoLodging, city)
			a.logger.Warn("[assemble] %s: %d offers but no lodging available", city, len(cityOffers))
			continue
		}

		created := 0
		for _, offer := range cityOffers {
			if !offer.IsRoundTrip() {
				stats.OneWaySkipped++
				continue
			}

			nights := offer.Nights()
			if nights < opts.MinNights || nights > opts.MaxNights {
				stats.RejectedNights++
				continue
			}
			if opts.Calendar != nil && !opts.Calendar(offer.DepartureDate) {
				stats.RejectedCalendar++
				continue
			}

			for _, l := range cityLodging {
				stats.PairsTried++

				cost := a.model.PricePackage(offer, l, nights, opts.Travelers, opts.Bags)
				if cost.Total > opts.BudgetCeiling {
					stats.RejectedBudget++
					continue
				}

				key := pairKey(offer, l)
				if !seen.Add(key) || (index != nil && index.Contains(key)) {
					stats.Duplicates++
					continue
				}

				packages = append(packages, &models.Package{
					Offer:         offer,
					Lodging:       l,
					Destination:   city,
					DepartureDate: offer.DepartureDate,
					ReturnDate:    offer.ReturnDate,
					Nights:        nights,
					Cost:          cost,
					Key:           key,
					CreatedAt:     time.Now(),
				})
				created++
			}
		}

		a.logger.Info("[assemble] %s: %d packages from %d offers × %d lodging",
			city, created, len(cityOffers), len(cityLodging))
		stats.Created += created
	}

	return packages, stats
}

// pairKey identifies the (offer, lodging) combination across runs.
func pairKey(o *models.CanonicalOffer, l *models.LodgingOption) string {
	return fmt.Sprintf("%s||%s", o.Key, LodgingKey(l))
}

// LodgingKey identifies one lodging option: the store row id when it has
// one, otherwise the source listing.
func LodgingKey(l *models.LodgingOption) string {
	if l.ID != 0 {
		return fmt.Sprintf("lodging:%d", l.ID)
	}
	return l.Source + ":" + l.URL
}
