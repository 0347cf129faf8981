package models

import (
	"fmt"
	"time"
)

// DateRange is one travel window to search. Return is the zero time for
// one-way searches.
type DateRange struct {
	Departure time.Time
	Return    time.Time
}

// Query describes one acquisition run: every origin is searched against
// every destination for every date range, on every registered source.
type Query struct {
	Origins      []string
	Destinations []string
	DateRanges   []DateRange
}

// Units returns the number of fetch units the query expands to per source.
func (q Query) Units() int {
	return len(q.Origins) * len(q.Destinations) * len(q.DateRanges)
}

// Offer is one source's observation of a single flight itinerary at a point
// in time. Offers are immutable once produced by an adapter; the reconciler
// supersedes them with CanonicalOffer records rather than mutating them.
type Offer struct {
	Origin      string // IATA code, e.g. "MUC"
	Destination string // IATA code, e.g. "LIS"
	Carrier     string

	DepartureDate time.Time
	DepartureTime string // "15:04", empty when the source did not report it
	ReturnDate    time.Time // zero for one-way itineraries
	ReturnTime    string

	PricePerTraveler float64
	TotalPrice       float64 // for the configured traveler count

	Direct    bool
	FareClass string

	Source     string // adapter identifier, e.g. "kiwi"
	BookingRef string // source-specific booking URL or reference
	ObservedAt time.Time
}

// Route returns a code like "MUC-LIS".
func (o *Offer) Route() string {
	return o.Origin + "-" + o.Destination
}

// IsRoundTrip reports whether the offer includes a return leg.
func (o *Offer) IsRoundTrip() bool {
	return !o.ReturnDate.IsZero()
}

// Nights returns the trip length in nights, or 0 for one-way offers.
func (o *Offer) Nights() int {
	if !o.IsRoundTrip() {
		return 0
	}
	return int(o.ReturnDate.Sub(o.DepartureDate).Hours() / 24)
}

// SourceRef is one (source, reference) provenance pair retained on a
// canonical offer so a consumer can choose among booking channels.
type SourceRef struct {
	Source string
	Ref    string
}

// CanonicalOffer is the reconciler's output: a single representative offer
// for one real-world flight plus provenance to every contributing
// observation. Owned by the reconciler, read-only downstream.
type CanonicalOffer struct {
	Offer

	// Key is the equivalence-class key the offer was grouped under.
	Key string
	// Refs holds booking references from every member of the class.
	Refs []SourceRef
	// Members is how many observations the class contained.
	Members int

	// Cost is attached once by the cost model after reconciliation.
	Cost *CostBreakdown
}

// CostBreakdown is the itemised true-cost of an offer or package. The
// invariant is Total == sum of every itemised field exactly; there are no
// hidden terms.
type CostBreakdown struct {
	BasePrice float64
	Baggage   float64
	Parking   float64
	Fuel      float64
	TimeValue float64

	// Package-only components; zero on bare offers.
	Lodging    float64
	Food       float64
	Activities float64

	Total float64

	// MissingRefData is set when airport reference data was unavailable and
	// one or more components fell back to zero, so callers can distinguish
	// "genuinely free" from "unknown".
	MissingRefData bool
}

// HiddenCosts returns everything except the advertised base price.
func (c *CostBreakdown) HiddenCosts() float64 {
	return c.Total - c.BasePrice
}

// PerTraveler returns the total split across n travelers.
func (c *CostBreakdown) PerTraveler(n int) float64 {
	if n <= 0 {
		return c.Total
	}
	return c.Total / float64(n)
}

func (c *CostBreakdown) String() string {
	return fmt.Sprintf("base=%.2f baggage=%.2f parking=%.2f fuel=%.2f time=%.2f lodging=%.2f food=%.2f activities=%.2f total=%.2f",
		c.BasePrice, c.Baggage, c.Parking, c.Fuel, c.TimeValue, c.Lodging, c.Food, c.Activities, c.Total)
}
