package schedule

import (
	"math"
	"testing"
	"time"

	"github.com/evfleet/fleetplan/core/model"
)

func TestForwardFill(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(30 * time.Minute),
		base.Add(time.Hour),
		base.Add(90 * time.Minute),
	}
	prices := map[time.Time]float64{
		base.Add(30 * time.Minute): 0.20,
		base.Add(time.Hour):        0.30,
	}
	got := forwardFill(times, prices, 0.12)
	want := []float64{0.12, 0.20, 0.30, 0.30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("period %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestNetCapacityClipsAtZero(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(30 * time.Minute)}
	load := map[time.Time]float64{
		base:                       10,
		base.Add(30 * time.Minute): 500,
	}
	got := netCapacity(times, 100, load, 0.9)
	if got[0] != 80 {
		t.Fatalf("expected 100*0.9-10=80, got %v", got[0])
	}
	if got[1] != 0 {
		t.Fatalf("overloaded periods must clip to zero, got %v", got[1])
	}
}

func TestScheduleDatesHorizon(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 3, day, 8, 0, 0, 0, time.UTC) }
	routes := []model.Route{
		{ID: 1, Departure: d(4), Arrival: d(4).Add(time.Hour)},
		{ID: 2, Departure: d(2), Arrival: d(2).Add(time.Hour)},
		{ID: 3, Departure: d(3), Arrival: d(3).Add(time.Hour)},
		{ID: 4, Departure: d(2).Add(time.Hour), Arrival: d(2).Add(2 * time.Hour)},
	}
	dates := ScheduleDates(routes, 2)
	if len(dates) != 2 {
		t.Fatalf("horizon must cap the dates, got %v", dates)
	}
	if dates[0].Day() != 2 || dates[1].Day() != 3 {
		t.Fatalf("dates must start at the earliest day, got %v", dates)
	}
}

func TestScheduleDatesFillGapDays(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 3, day, 8, 0, 0, 0, time.UTC) }
	routes := []model.Route{
		{ID: 1, Departure: d(2), Arrival: d(2).Add(time.Hour)},
		{ID: 2, Departure: d(4), Arrival: d(4).Add(time.Hour)},
	}
	dates := ScheduleDates(routes, 30)
	if len(dates) != 3 {
		t.Fatalf("expected 3 consecutive days, got %v", dates)
	}
	// The route-free day stays on the grid so parked vehicles can charge.
	if dates[1].Day() != 3 {
		t.Fatalf("gap day missing from the grid: %v", dates)
	}
}

func TestBuildProblemFiltersDieselRoutes(t *testing.T) {
	pl := testPlanner()
	alloc := model.Allocation{ID: 1, SmallSpecID: 1, LargeSpecID: 2, ChargerAC: 11, ChargerDC: 50, NumFast: 1}
	site := model.Site{ID: 1, CapacityKW: 100}
	specs := map[int64]model.VehicleSpec{
		1: {ID: 1, BatteryKWh: 50, EnergyUse: 0.5, ChargeAC: 22, ChargeDC: 100},
		2: {ID: 2, BatteryKWh: 150, EnergyUse: 1, ChargeAC: 22, ChargeDC: 100},
	}
	routes := []model.Route{
		{ID: 1, VehicleID: 1, SpecID: 1, EnergyKWh: 10, Departure: day(8, 0), Arrival: day(12, 0)},
		{ID: 2, VehicleID: 2, SpecID: 2, EnergyKWh: 0, Departure: day(8, 0), Arrival: day(12, 0)},
	}
	scn := model.Scenario{ID: 1, AllocationID: 1, SmartCharging: true}

	prob, err := BuildProblem(scn, alloc, site, routes, specs, nil, nil, pl)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(prob.Vehicles) != 1 || prob.Vehicles[0] != 1 {
		t.Fatalf("zero-energy routes must not schedule, got vehicles %v", prob.Vehicles)
	}
	// Vehicle rates clip to the site chargers.
	if prob.RateACKW[0] != 11 || prob.RateDCKW[0] != 50 {
		t.Fatalf("rates must clip to the chargers, got %v %v", prob.RateACKW[0], prob.RateDCKW[0])
	}
	if prob.NextRequiredKWh[0] != -50 {
		t.Fatalf("next-day requirement defaults to a full battery, got %v", prob.NextRequiredKWh[0])
	}
	if prob.ExtraCapacityKW != 100*pl.BreachMargin {
		t.Fatalf("breach headroom scales the site feed, got %v", prob.ExtraCapacityKW)
	}
}

func TestBuildProblemNoElectricRoutes(t *testing.T) {
	pl := testPlanner()
	prob, err := BuildProblem(model.Scenario{}, model.Allocation{}, model.Site{},
		[]model.Route{{ID: 1, VehicleID: 1, EnergyKWh: 0}}, nil, nil, nil, pl)
	if err != nil || prob != nil {
		t.Fatalf("a diesel-only allocation yields no problem, got %v %v", prob, err)
	}
}

func TestBuildProblemDumbCharging(t *testing.T) {
	pl := testPlanner()
	alloc := model.Allocation{ID: 1, SmallSpecID: 1, LargeSpecID: 1, ChargerAC: 11, ChargerDC: 50}
	specs := map[int64]model.VehicleSpec{
		1: {ID: 1, BatteryKWh: 50, EnergyUse: 0.5, ChargeAC: 22, ChargeDC: 100},
	}
	routes := []model.Route{
		{ID: 1, VehicleID: 1, SpecID: 1, EnergyKWh: 10, Departure: day(8, 0), Arrival: day(12, 0)},
	}
	prob, err := BuildProblem(model.Scenario{SmartCharging: false}, alloc, model.Site{CapacityKW: 50}, routes, specs, nil, nil, pl)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, c := range prob.CapacityKW {
		if c != unconstrainedKW {
			t.Fatalf("dumb charging ignores the site feed, got %v", c)
		}
	}
	for _, p := range prob.PriceKWh {
		if p != pl.DefaultPrice {
			t.Fatalf("dumb charging prices at the default, got %v", p)
		}
	}
}

func TestCropDayRebases(t *testing.T) {
	prob := tinyProblem(50, 10, 100, []float64{1, 1, 1, 1}, []float64{0, 0, 0, 0})
	day := prob.CropDay(0, []float64{-5})
	if day.Lo != 0 || day.Hi != 4 || day.Periods() != 4 {
		t.Fatalf("unexpected window: %+v", day)
	}
	if math.Abs(day.Rel[0]+5) > 1e-12 {
		t.Fatalf("carried state of charge lost: %v", day.Rel)
	}
	if len(day.Sessions) != 1 || day.Sessions[0].Start != 0 || day.Sessions[0].End != 4 {
		t.Fatalf("sessions must clip to the day: %v", day.Sessions)
	}
}
