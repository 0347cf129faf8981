package scraper

import (
	"math"
	"regexp"
	"strings"

	"tripscout/models"
	"tripscout/utils"
)

var (
	// iataRegexp matches a 3-letter airport code.
	iataRegexp = regexp.MustCompile(`^[A-Z]{3}$`)
	// clockRegexp matches a 24h "HH:MM" time of day.
	clockRegexp = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Validator checks and normalises raw offers coming back from the sources.
// Records missing required fields are dropped with a diagnostic, never
// treated as a fatal error.
type Validator struct {
	travelers int
	logger    *utils.Logger
}

// NewValidator creates a Validator for the configured traveler count.
func NewValidator(travelers int, logger *utils.Logger) *Validator {
	if travelers < 1 {
		travelers = 1
	}
	return &Validator{travelers: travelers, logger: logger}
}

// Clean normalises the batch and returns the valid offers plus the number
// of records dropped.
func (v *Validator) Clean(raw []*models.Offer) (valid []*models.Offer, dropped int) {
	seen := make(map[string]struct{}, len(raw))
	valid = make([]*models.Offer, 0, len(raw))

	for _, o := range raw {
		v.normalise(o)

		if reason := v.check(o); reason != "" {
			v.logger.Warn("[validate] Dropping offer from %s (%s): %s", o.Source, o.Route(), reason)
			dropped++
			continue
		}

		// The same source occasionally reports one itinerary twice; exact
		// repeats carry no information and are dropped here. Cross-source
		// overlap is the reconciler's job, not ours.
		fp := o.Source + "|" + o.BookingRef + "|" + o.Route() + "|" + o.DepartureDate.Format("2006-01-02") + "|" + o.DepartureTime
		if _, dup := seen[fp]; dup {
			v.logger.Debug("[validate] Exact repeat skipped: %s", fp)
			dropped++
			continue
		}
		seen[fp] = struct{}{}

		valid = append(valid, o)
	}

	return valid, dropped
}

func (v *Validator) normalise(o *models.Offer) {
	o.Origin = strings.ToUpper(strings.TrimSpace(o.Origin))
	o.Destination = strings.ToUpper(strings.TrimSpace(o.Destination))
	o.Carrier = strings.TrimSpace(o.Carrier)
	o.Source = strings.ToLower(strings.TrimSpace(o.Source))
	o.BookingRef = strings.TrimSpace(o.BookingRef)

	if o.DepartureTime != "" && !clockRegexp.MatchString(o.DepartureTime) {
		v.logger.Debug("[validate] Unparseable departure time %q cleared (%s)", o.DepartureTime, o.Route())
		o.DepartureTime = ""
	}
	if o.ReturnTime != "" && !clockRegexp.MatchString(o.ReturnTime) {
		o.ReturnTime = ""
	}

	// Keep total = per-traveler × travelers within rounding. Sources that
	// report only one of the two get the other derived.
	n := float64(v.travelers)
	switch {
	case o.TotalPrice <= 0 && o.PricePerTraveler > 0:
		o.TotalPrice = round2(o.PricePerTraveler * n)
	case o.PricePerTraveler <= 0 && o.TotalPrice > 0:
		o.PricePerTraveler = round2(o.TotalPrice / n)
	case o.TotalPrice > 0 && o.PricePerTraveler > 0:
		if math.Abs(o.TotalPrice-o.PricePerTraveler*n) > 0.01*n+0.005 {
			v.logger.Debug("[validate] Price mismatch repaired for %s: total %.2f vs %.2f×%d",
				o.Route(), o.TotalPrice, o.PricePerTraveler, v.travelers)
			o.TotalPrice = round2(o.PricePerTraveler * n)
		}
	}
}

func (v *Validator) check(o *models.Offer) string {
	switch {
	case !iataRegexp.MatchString(o.Origin):
		return "invalid origin code"
	case !iataRegexp.MatchString(o.Destination):
		return "invalid destination code"
	case o.Carrier == "":
		return "missing carrier"
	case o.DepartureDate.IsZero():
		return "missing departure date"
	case o.IsRoundTrip() && o.ReturnDate.Before(o.DepartureDate):
		return "return before departure"
	case o.PricePerTraveler <= 0:
		return "missing price"
	case o.Source == "":
		return "missing source"
	case o.BookingRef == "":
		return "missing booking reference"
	case o.ObservedAt.IsZero():
		return "missing observation timestamp"
	}
	return ""
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
