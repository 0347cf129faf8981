package models

import "time"

// LodgingOption is one accommodation candidate in a destination city.
// Supplied by an external collaborator (rows in the lodging table); this
// core reads it and never writes it.
type LodgingOption struct {
	ID             int64
	City           string
	Name           string
	Type           string // "hotel", "airbnb", "apartment"
	Bedrooms       int
	PricePerNight  float64
	FamilyFriendly bool
	HasKitchen     bool
	Rating         float64
	Source         string
	URL            string
}

// Package is an assembled, priced combination of one canonical flight offer
// and at most one lodging option, constrained to budget, duration, and
// calendar rules at assembly time.
type Package struct {
	ID      int64
	Offer   *CanonicalOffer
	Lodging *LodgingOption // nil when no lodging is attached

	Destination   string // destination city
	DepartureDate time.Time
	ReturnDate    time.Time
	Nights        int

	Cost CostBreakdown

	// Key identifies the (offer, lodging) pair for duplicate suppression
	// across assembler runs.
	Key string

	// Annotation is the reviewed/scored slot written by downstream
	// collaborators; this core never writes it.
	Annotation string

	CreatedAt time.Time
}

// UnitError records one failed fetch unit for diagnostics.
type UnitError struct {
	Source  string
	Route   string
	Message string
}

// SourceStats aggregates per-source unit outcomes for one run.
type SourceStats struct {
	Succeeded int
	Failed    int
	Offers    int
}

// RunStats is the per-orchestration-run record: created at run start,
// finalised at run end, persisted for observability win or lose.
type RunStats struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	TotalUnits int
	Succeeded  int
	Failed     int
	Cancelled  int
	Threshold  float64

	// OffersFetched counts valid offers in the union; DroppedOffers counts
	// records adapters returned that failed validation.
	OffersFetched int
	DroppedOffers int

	Errors    []UnitError
	PerSource map[string]*SourceStats
}

// FailureRate returns failed units over total units, 0 for an empty run.
func (s *RunStats) FailureRate() float64 {
	if s.TotalUnits == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.TotalUnits)
}

func (s *RunStats) source(name string) *SourceStats {
	if s.PerSource == nil {
		s.PerSource = make(map[string]*SourceStats)
	}
	st, ok := s.PerSource[name]
	if !ok {
		st = &SourceStats{}
		s.PerSource[name] = st
	}
	return st
}

// RecordSuccess tallies one succeeded unit and its offer count.
func (s *RunStats) RecordSuccess(source string, offers int) {
	s.Succeeded++
	s.OffersFetched += offers
	st := s.source(source)
	st.Succeeded++
	st.Offers += offers
}

// RecordFailure tallies one failed unit with its diagnostic.
func (s *RunStats) RecordFailure(source, route, msg string) {
	s.Failed++
	s.source(source).Failed++
	s.Errors = append(s.Errors, UnitError{Source: source, Route: route, Message: msg})
}
