// Package scraper defines the acquisition contract every offer source
// implements and the validation applied to whatever the sources return.
package scraper

import (
	"context"
	"time"

	"tripscout/models"
)

// UnitQuery is one independent unit of work: a single (origin, destination,
// date range) search against a single source.
type UnitQuery struct {
	Origin      string
	Destination string
	Departure   time.Time
	Return      time.Time // zero for one-way searches
}

// Route returns a code like "MUC-LIS" for logging and diagnostics.
func (q UnitQuery) Route() string {
	return q.Origin + "-" + q.Destination
}

// Source is the capability interface for one offer feed. The orchestrator
// depends only on this interface, never on concrete adapter types.
type Source interface {
	// Name returns the stable source identifier, e.g. "kiwi".
	Name() string

	// FetchOffers returns all offers the source found for the query, or an
	// error. Implementations own their retry policy; the orchestrator
	// treats any error as a single unit failure.
	FetchOffers(ctx context.Context, q UnitQuery) ([]*models.Offer, error)
}
