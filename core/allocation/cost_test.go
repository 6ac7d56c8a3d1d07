package allocation

import (
	"math"
	"testing"
	"time"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/model"
)

func testParams() Params {
	var pl config.Planner
	pl.SetDefaults()
	small := model.VehicleSpec{
		ID: 1, Fuel: model.FuelElectric,
		BatteryKWh: 50, EnergyUse: 0.5, ChargeAC: 11, ChargeDC: 50,
		MaxPayload: 800, MaxCrates: 50,
	}
	large := model.VehicleSpec{
		ID: 2, Fuel: model.FuelElectric,
		BatteryKWh: 150, EnergyUse: 1, ChargeAC: 11, ChargeDC: 50,
		MaxPayload: 1200, MaxCrates: 80,
	}
	return Params{
		Planner:    pl,
		Specs:      model.SpecPair{small, large},
		Turnaround: time.Hour,
		Connect:    30 * time.Minute,
		ChargerAC:  11,
		ChargerDC:  50,
		MaxFleet:   pl.MaxFleetSize,
	}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func firstLeg(p Params, distance, crates float64) Leg {
	return legFromRoute(model.Route{
		ID: 100, Shift: 1, VehicleID: 1,
		Departure: at(6, 0), Arrival: at(10, 0),
		DistanceMi: distance, Crates: crates,
	}, p.Planner)
}

func secondRoute(distance, crates float64) model.Route {
	return model.Route{
		ID: 200, Shift: 2,
		Departure: at(14, 0), Arrival: at(18, 0),
		DistanceMi: distance, Crates: crates,
	}
}

func pairCost(t *testing.T, p Params, leg Leg, r model.Route) float64 {
	t.Helper()
	table := BuildCostTable([]Leg{leg}, []model.Route{r}, p)
	return table.Cost.At(0, 0)
}

func TestCostSmallNoCharging(t *testing.T) {
	p := testParams()
	cost := pairCost(t, p, firstLeg(p, 20, 0), secondRoute(20, 0))
	if cost != 1 {
		t.Fatalf("small duty without charging should cost 1, got %v", cost)
	}
}

func TestCostLargeNoCharging(t *testing.T) {
	p := testParams()
	// 60 crates push the pairing over the small tier.
	cost := pairCost(t, p, firstLeg(p, 20, 60), secondRoute(20, 60))
	if cost != 0.5 {
		t.Fatalf("large duty without charging should cost exactly 0.5, got %v", cost)
	}
}

func TestCostSmallSlowCharging(t *testing.T) {
	p := testParams()
	// 96 raw miles total exceed the small range but slow intershift
	// charging covers the gap.
	cost := pairCost(t, p, firstLeg(p, 48, 0), secondRoute(48, 0))
	if cost <= 0.75 || cost >= 1 {
		t.Fatalf("small duty on slow charging should land in (0.75,1), got %v", cost)
	}
}

func TestCostLargeFastCharging(t *testing.T) {
	p := testParams()
	// 200 raw miles need more than the large pack plus slow charging can
	// hold; only the fast charger keeps this pairing alive.
	cost := pairCost(t, p, firstLeg(p, 100, 60), secondRoute(100, 60))
	if cost <= 0 || cost >= 0.25 {
		t.Fatalf("large duty on fast charging should land in (0,0.25), got %v", cost)
	}
}

func TestCostTurnaroundViolation(t *testing.T) {
	p := testParams()
	r := secondRoute(20, 0)
	r.Departure = at(10, 30) // inside the turnaround window after a 10:00 arrival
	cost := pairCost(t, p, firstLeg(p, 20, 0), r)
	if cost != -1 {
		t.Fatalf("turnaround violation should hit the infeasible floor, got %v", cost)
	}
}

func TestCostInfeasibleFloorScalesWithFleet(t *testing.T) {
	p := testParams()
	legs := []Leg{firstLeg(p, 20, 0), firstLeg(p, 20, 0)}
	legs[1].Vehicle = 2
	r := secondRoute(20, 0)
	r.Departure = at(10, 30)
	table := BuildCostTable(legs, []model.Route{r}, p)
	if got := table.Cost.At(0, 0); got != -2 {
		t.Fatalf("floor should be -N for N slots, got %v", got)
	}
}

func TestCostOrdinalOrdering(t *testing.T) {
	p := testParams()
	smallNo := pairCost(t, p, firstLeg(p, 20, 0), secondRoute(20, 0))
	smallSlow := pairCost(t, p, firstLeg(p, 48, 0), secondRoute(48, 0))
	largeNo := pairCost(t, p, firstLeg(p, 20, 60), secondRoute(20, 60))
	largeFast := pairCost(t, p, firstLeg(p, 100, 60), secondRoute(100, 60))
	if !(smallNo > smallSlow && smallSlow > largeNo && largeNo > largeFast && largeFast > 0) {
		t.Fatalf("ordinal scale violated: %v %v %v %v", smallNo, smallSlow, largeNo, largeFast)
	}
}

func TestIntershiftSlots(t *testing.T) {
	slots := intershiftSlots(at(10, 0), at(14, 0), 30*time.Minute, 30*time.Minute)
	if slots != 7 {
		t.Fatalf("expected 7 charging slots, got %d", slots)
	}
	if s := intershiftSlots(at(14, 0), at(10, 0), 0, 30*time.Minute); s >= 0 {
		t.Fatalf("overlapping legs should yield negative slots, got %d", s)
	}
}

func TestExpandSlotsFillsEmpty(t *testing.T) {
	p := testParams()
	leg := firstLeg(p, 20, 0)
	legs := expandSlots([]Leg{leg}, 3)
	if len(legs) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(legs))
	}
	if legs[1].Arrival != epoch || legs[2].EquivMileage != 0 {
		t.Fatalf("empty slots should carry zero epoch legs: %+v", legs[1:])
	}
	if math.Abs(legs[0].EquivMileage-25) > 1e-9 {
		t.Fatalf("derated mileage should be 20/0.8, got %v", legs[0].EquivMileage)
	}
}
