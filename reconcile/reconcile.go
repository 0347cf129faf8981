// Package reconcile collapses overlapping observations from different
// sources into one canonical offer per real-world flight.
package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tripscout/models"
	"tripscout/utils"
)

// Reconciler groups offers into equivalence classes and elects one
// representative per class. It is stateless; Dedup operates on an
// already-materialised batch and needs no locking.
type Reconciler struct {
	windowHours int
	logger      *utils.Logger
}

// New creates a Reconciler with the given departure-time bucket width in
// hours. The width is an empirically chosen constant from the source feeds
// and is passed in rather than hard-coded.
func New(windowHours int, logger *utils.Logger) *Reconciler {
	if windowHours < 1 {
		windowHours = 2
	}
	return &Reconciler{windowHours: windowHours, logger: logger}
}

// Dedup returns one canonical offer per equivalence class. Given the same
// input multiset in any order it produces the same output: grouping uses a
// content-derived key and the winner election uses an explicit comparator,
// never arrival order.
func (r *Reconciler) Dedup(offers []*models.Offer) []*models.CanonicalOffer {
	if len(offers) == 0 {
		return nil
	}

	grouped := make(map[string][]*models.Offer, len(offers))
	for _, o := range offers {
		key := r.Key(o)
		grouped[key] = append(grouped[key], o)
	}

	canonical := make([]*models.CanonicalOffer, 0, len(grouped))
	for key, members := range grouped {
		canonical = append(canonical, buildCanonical(key, members))
	}

	// Emit in key order so repeated runs over the same multiset are
	// byte-for-byte reproducible.
	sort.Slice(canonical, func(i, j int) bool {
		return canonical[i].Key < canonical[j].Key
	})

	if r.logger != nil {
		r.logger.Info("[reconcile] %d offers → %d canonical (%d duplicates merged)",
			len(offers), len(canonical), len(offers)-len(canonical))
	}
	return canonical
}

// Key computes the equivalence-class key: route, carrier, departure day,
// departure time bucketed to the configured window, and the return leg
// bucketed the same way when present. Offers missing the departure time are
// never merged with anything; they get a content fingerprint of their own
// so a false-positive merge cannot happen.
func (r *Reconciler) Key(o *models.Offer) string {
	if o.DepartureTime == "" {
		return fmt.Sprintf("??|%s|%s|%s|%s|%.2f|%s|%s",
			o.Origin, o.Destination, strings.ToUpper(o.Carrier),
			o.DepartureDate.Format("2006-01-02"), o.PricePerTraveler,
			o.Source, o.BookingRef)
	}

	parts := []string{
		o.Origin,
		o.Destination,
		strings.ToUpper(o.Carrier),
		o.DepartureDate.Format("2006-01-02"),
		r.bucket(o.DepartureTime),
	}
	if o.IsRoundTrip() {
		parts = append(parts, o.ReturnDate.Format("2006-01-02"), r.bucket(o.ReturnTime))
	} else {
		parts = append(parts, "oneway")
	}
	return strings.Join(parts, "|")
}

// bucket floors an "HH:MM" clock value to the window boundary, e.g. 11:30
// with a 2h window becomes "10". An absent return time buckets to "xx" so
// it only matches other absent times.
func (r *Reconciler) bucket(clock string) string {
	if len(clock) < 2 {
		return "xx"
	}
	hour, err := strconv.Atoi(clock[:2])
	if err != nil {
		return "xx"
	}
	return fmt.Sprintf("%02d", hour-hour%r.windowHours)
}

// buildCanonical elects the class winner and merges provenance. Lowest
// total price wins; ties break on (source, booking reference) so the
// outcome is identical under any input permutation.
func buildCanonical(key string, members []*models.Offer) *models.CanonicalOffer {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.TotalPrice != b.TotalPrice {
			return a.TotalPrice < b.TotalPrice
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.BookingRef < b.BookingRef
	})

	best := members[0]
	c := &models.CanonicalOffer{
		Offer:   *best,
		Key:     key,
		Members: len(members),
	}

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		ref := m.Source + "|" + m.BookingRef
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		c.Refs = append(c.Refs, models.SourceRef{Source: m.Source, Ref: m.BookingRef})
	}
	sort.Slice(c.Refs, func(i, j int) bool {
		if c.Refs[i].Source != c.Refs[j].Source {
			return c.Refs[i].Source < c.Refs[j].Source
		}
		return c.Refs[i].Ref < c.Refs[j].Ref
	})

	return c
}
