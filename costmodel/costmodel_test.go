package costmodel

import (
	"math"
	"testing"
	"time"

	"tripscout/models"
	"tripscout/refdata"
)

func testTable() *refdata.Table {
	return refdata.NewTable([]refdata.Airport{
		{IATA: "FMM", City: "Memmingen", ParkingPerDay: 5.0, DistanceKm: 110, DriveMinutes: 140},
		{IATA: "MUC", City: "Munich", ParkingPerDay: 15.0, DistanceKm: 40, DriveMinutes: 45},
	})
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testOffer(origin, carrier string, price float64, nights int) *models.CanonicalOffer {
	dep := day("2026-10-12")
	return &models.CanonicalOffer{
		Offer: models.Offer{
			Origin:        origin,
			Destination:   "LIS",
			Carrier:       carrier,
			DepartureDate: dep,
			DepartureTime: "10:00",
			ReturnDate:    dep.AddDate(0, 0, nights),
			ReturnTime:    "18:00",
			TotalPrice:    price,
			Source:        "kiwi",
			BookingRef:    "ref-1",
		},
		Key: "test-key",
	}
}

func TestPriceHiddenCostsFromMemmingen(t *testing.T) {
	m := New(testTable(), Options{})
	offer := testOffer("FMM", "Ryanair", 400, 7)

	b := m.Price(offer, 4, 2)

	// 2 bags × €30, 7 nights × €5 parking, 110 km × 2 × €0.08 fuel,
	// 140 min × 2 ÷ 60 × €20 time value.
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"baggage", b.Baggage, 60.00},
		{"parking", b.Parking, 35.00},
		{"fuel", b.Fuel, 17.60},
		{"time value", b.TimeValue, 93.33},
		{"hidden", b.HiddenCosts(), 205.93},
		{"total", b.Total, 605.93},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 0.001 {
			t.Errorf("%s: got %.2f, want %.2f", c.name, c.got, c.want)
		}
	}
	if b.MissingRefData {
		t.Error("MissingRefData should be false for a fully specified airport")
	}
}

func TestPriceLegacyCarrierHasNoBagFee(t *testing.T) {
	m := New(testTable(), Options{})
	offer := testOffer("MUC", "Lufthansa", 600, 7)

	b := m.Price(offer, 4, 2)
	if b.Baggage != 0 {
		t.Errorf("legacy carrier baggage: got %.2f, want 0", b.Baggage)
	}
}

func TestPriceBudgetCarrierMatching(t *testing.T) {
	m := New(testTable(), Options{})

	tests := []struct {
		carrier string
		budget  bool
	}{
		{"Ryanair", true},
		{"ryanair", true},
		{"Wizz Air", true},
		{"wizzair", true},
		{"easyJet", true},
		{"Vueling Airlines", true},
		{"Lufthansa", false},
		{"TAP Portugal", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.IsBudgetCarrier(tt.carrier); got != tt.budget {
			t.Errorf("IsBudgetCarrier(%q) = %v; want %v", tt.carrier, got, tt.budget)
		}
	}
}

func TestPriceUnknownAirportFlagsMissingData(t *testing.T) {
	m := New(testTable(), Options{})
	offer := testOffer("XXX", "Ryanair", 400, 7)

	b := m.Price(offer, 4, 2)

	if !b.MissingRefData {
		t.Error("unknown origin airport should set MissingRefData")
	}
	if b.Parking != 0 || b.Fuel != 0 || b.TimeValue != 0 {
		t.Errorf("airport components should be zero for unknown airport: %+v", b)
	}
	// Pricing still completes with the components it has.
	if math.Abs(b.Total-460.00) > 0.001 {
		t.Errorf("total: got %.2f, want 460.00", b.Total)
	}
}

func TestPriceTotalEqualsSumOfComponents(t *testing.T) {
	m := New(testTable(), Options{})

	offers := []*models.CanonicalOffer{
		testOffer("FMM", "Ryanair", 400, 7),
		testOffer("MUC", "Lufthansa", 612.34, 3),
		testOffer("XXX", "Wizz Air", 89.99, 10),
	}
	for _, o := range offers {
		b := m.Price(o, 4, 2)
		sum := b.BasePrice + b.Baggage + b.Parking + b.Fuel + b.TimeValue +
			b.Lodging + b.Food + b.Activities
		if math.Abs(b.Total-sum) > 0.001 {
			t.Errorf("%s: total %.2f != component sum %.2f", o.Origin, b.Total, sum)
		}
	}
}

func TestPriceIsPure(t *testing.T) {
	m := New(testTable(), Options{})
	offer := testOffer("FMM", "Ryanair", 400, 7)

	first := m.Price(offer, 4, 2)
	for i := 0; i < 5; i++ {
		if got := m.Price(offer, 4, 2); got != first {
			t.Fatalf("call %d produced a different breakdown: %+v vs %+v", i, got, first)
		}
	}
}

func TestPricePackageAddsStayComponents(t *testing.T) {
	m := New(testTable(), Options{})
	offer := testOffer("FMM", "Ryanair", 400, 7)
	lodging := &models.LodgingOption{City: "Lisbon", Name: "Apartment", PricePerNight: 80}

	b := m.PricePackage(offer, lodging, 7, 4, 2)

	if math.Abs(b.Lodging-560.00) > 0.001 {
		t.Errorf("lodging: got %.2f, want 560.00", b.Lodging)
	}
	if math.Abs(b.Food-700.00) > 0.001 {
		t.Errorf("food: got %.2f, want 700.00", b.Food)
	}
	if math.Abs(b.Activities-350.00) > 0.001 {
		t.Errorf("activities: got %.2f, want 350.00", b.Activities)
	}
	// Flight-side components carry over unchanged.
	if math.Abs(b.HiddenCosts()-(205.93+560.00+700.00+350.00)) > 0.001 {
		t.Errorf("hidden: got %.2f", b.HiddenCosts())
	}
	sum := b.BasePrice + b.Baggage + b.Parking + b.Fuel + b.TimeValue +
		b.Lodging + b.Food + b.Activities
	if math.Abs(b.Total-sum) > 0.001 {
		t.Errorf("total %.2f != component sum %.2f", b.Total, sum)
	}
}

func TestPriceComponentsNonNegative(t *testing.T) {
	m := New(testTable(), Options{})
	oneway := testOffer("FMM", "Ryanair", 150, 0)
	oneway.ReturnDate = time.Time{}

	b := m.Price(oneway, 4, 2)
	for name, v := range map[string]float64{
		"base": b.BasePrice, "baggage": b.Baggage, "parking": b.Parking,
		"fuel": b.Fuel, "time": b.TimeValue, "total": b.Total,
	} {
		if v < 0 {
			t.Errorf("%s is negative: %.2f", name, v)
		}
	}
	// One-way means zero nights, so no parking accrues.
	if b.Parking != 0 {
		t.Errorf("one-way parking: got %.2f, want 0", b.Parking)
	}
}
