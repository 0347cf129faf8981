// Package costmodel computes the true cost of an offer: the advertised
// price plus every hidden expense of actually using it, from checked bags
// to the drive to the airport.
package costmodel

import (
	"math"
	"strings"

	"tripscout/models"
	"tripscout/refdata"
)

// Carriers that charge per checked bag; legacy carriers include baggage.
var defaultBudgetCarriers = []string{"ryanair", "wizzair", "wizz air", "easyjet", "vueling"}

// Options carries the pricing constants. They are empirically chosen
// EUR-denominated defaults, injected so deployments can re-tune them.
type Options struct {
	BagFee             float64 // per checked bag on budget carriers
	FuelRatePerKm      float64 // average fuel cost per km driven
	HourlyValue        float64 // opportunity cost per hour of driving
	FoodPerNight       float64 // package consumables estimate
	ActivitiesPerNight float64
	BudgetCarriers     []string
}

func (o *Options) fill() {
	if o.BagFee == 0 {
		o.BagFee = 30.0
	}
	if o.FuelRatePerKm == 0 {
		o.FuelRatePerKm = 0.08
	}
	if o.HourlyValue == 0 {
		o.HourlyValue = 20.0
	}
	if o.FoodPerNight == 0 {
		o.FoodPerNight = 100.0
	}
	if o.ActivitiesPerNight == 0 {
		o.ActivitiesPerNight = 50.0
	}
	if len(o.BudgetCarriers) == 0 {
		o.BudgetCarriers = defaultBudgetCarriers
	}
}

// Model prices offers and packages. It is a pure function of its inputs
// and the static airport reference table: same inputs, same breakdown.
type Model struct {
	airports *refdata.Table
	opts     Options
}

// New creates a Model over the given airport reference table.
func New(airports *refdata.Table, opts Options) *Model {
	opts.fill()
	return &Model{airports: airports, opts: opts}
}

// Price computes the itemised true-cost breakdown for one canonical offer.
// Unknown origin airports never abort pricing: the affected components fall
// back to zero and the breakdown is flagged so callers can tell "free" from
// "unknown". Every component is non-negative and the total is the exact
// sum of the itemised fields.
func (m *Model) Price(offer *models.CanonicalOffer, travelers, bags int) models.CostBreakdown {
	b := models.CostBreakdown{
		BasePrice: round2(offer.TotalPrice),
		Baggage:   m.baggage(offer.Carrier, bags),
	}

	nights := offer.Nights()
	airport, known := m.airports.Lookup(offer.Origin)
	if !known {
		b.MissingRefData = true
	} else {
		b.Parking = m.parking(airport, nights)
		b.Fuel = m.fuel(airport)
		b.TimeValue = m.timeValue(airport)
		// Zero because the table has no figure, not because it is free.
		if (nights > 0 && airport.ParkingPerDay <= 0) || airport.DistanceKm <= 0 || airport.DriveMinutes <= 0 {
			b.MissingRefData = true
		}
	}

	b.Total = sum(&b)
	return b
}

// PricePackage extends Price with lodging and per-night consumable
// estimates. It reuses Price for the flight side rather than duplicating
// the component math.
func (m *Model) PricePackage(offer *models.CanonicalOffer, lodging *models.LodgingOption, nights, travelers, bags int) models.CostBreakdown {
	b := m.Price(offer, travelers, bags)

	if nights < 0 {
		nights = 0
	}
	if lodging != nil {
		b.Lodging = round2(lodging.PricePerNight * float64(nights))
	}
	b.Food = round2(m.opts.FoodPerNight * float64(nights))
	b.Activities = round2(m.opts.ActivitiesPerNight * float64(nights))

	b.Total = sum(&b)
	return b
}

// IsBudgetCarrier reports whether the carrier charges for checked bags.
func (m *Model) IsBudgetCarrier(carrier string) bool {
	c := strings.ToLower(strings.TrimSpace(carrier))
	for _, budget := range m.opts.BudgetCarriers {
		if strings.Contains(c, budget) {
			return true
		}
	}
	return false
}

func (m *Model) baggage(carrier string, bags int) float64 {
	if bags <= 0 || !m.IsBudgetCarrier(carrier) {
		return 0
	}
	return round2(float64(bags) * m.opts.BagFee)
}

func (m *Model) parking(a refdata.Airport, nights int) float64 {
	if nights <= 0 || a.ParkingPerDay <= 0 {
		return 0
	}
	return round2(a.ParkingPerDay * float64(nights))
}

func (m *Model) fuel(a refdata.Airport) float64 {
	if a.DistanceKm <= 0 {
		return 0
	}
	return round2(a.DistanceKm * 2 * m.opts.FuelRatePerKm)
}

func (m *Model) timeValue(a refdata.Airport) float64 {
	if a.DriveMinutes <= 0 {
		return 0
	}
	return round2(a.DriveMinutes * 2 / 60.0 * m.opts.HourlyValue)
}

// sum keeps the total == sum-of-fields invariant in one place.
func sum(b *models.CostBreakdown) float64 {
	return round2(b.BasePrice + b.Baggage + b.Parking + b.Fuel + b.TimeValue +
		b.Lodging + b.Food + b.Activities)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
