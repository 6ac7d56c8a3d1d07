package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/evfleet/fleetplan/core/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "plan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSiteAndSpecRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	site := model.Site{ID: 3, TurnaroundMin: 60, ConnectMin: 30, CapacityKW: 150, DistributionID: 9}
	if err := s.PutSite(ctx, site); err != nil {
		t.Fatalf("put site: %v", err)
	}
	got, err := s.Site(ctx, 3)
	if err != nil {
		t.Fatalf("get site: %v", err)
	}
	if got != site {
		t.Fatalf("site round trip: got %+v want %+v", got, site)
	}

	spec := model.VehicleSpec{
		ID: 5, Fuel: model.FuelElectric, BatteryKWh: 50, EnergyUse: 0.5,
		ChargeAC: 11, ChargeDC: 50, MaxPayload: 800, MaxCrates: 50,
	}
	if err := s.PutVehicleSpec(ctx, spec); err != nil {
		t.Fatalf("put spec: %v", err)
	}
	gotSpec, err := s.VehicleSpec(ctx, 5)
	if err != nil {
		t.Fatalf("get spec: %v", err)
	}
	if gotSpec != spec {
		t.Fatalf("spec round trip: got %+v want %+v", gotSpec, spec)
	}
}

func TestAllocationLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alloc := model.Allocation{
		RunID:     uuid.NewString(),
		SiteID:    1,
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		SmallSpecID: 1, LargeSpecID: 2,
		ChargerAC: 11, ChargerDC: 50, NumFast: 2,
		FleetSize: 3, CapVehicles: true,
	}
	id, err := s.CreateAllocation(ctx, alloc)
	if err != nil {
		t.Fatalf("create allocation: %v", err)
	}
	got, err := s.Allocation(ctx, id)
	if err != nil {
		t.Fatalf("get allocation: %v", err)
	}
	if got.RunID != alloc.RunID || !got.StartDate.Equal(alloc.StartDate) || !got.CapVehicles {
		t.Fatalf("allocation round trip: %+v", got)
	}
	if err := s.UpdateFleetSize(ctx, id, 7); err != nil {
		t.Fatalf("update fleet: %v", err)
	}
	got, _ = s.Allocation(ctx, id)
	if got.FleetSize != 7 {
		t.Fatalf("fleet size not persisted: %d", got.FleetSize)
	}
}

func TestRoutesAndAssignments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dayOne := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	routes := []model.Route{
		{AllocationID: 1, Shift: 1, Departure: dayOne.Add(8 * time.Hour), Arrival: dayOne.Add(12 * time.Hour),
			DistanceMi: 40, EnergyKWh: 10, SpecID: 1},
		{AllocationID: 1, Shift: 2, Departure: dayOne.Add(14 * time.Hour), Arrival: dayOne.Add(18 * time.Hour),
			DistanceMi: 30, EnergyKWh: 8, SpecID: 1},
		{AllocationID: 1, Shift: 1, Departure: dayOne.Add(32 * time.Hour), Arrival: dayOne.Add(36 * time.Hour),
			DistanceMi: 20, EnergyKWh: 5, SpecID: 1},
	}
	if err := s.AddRoutes(ctx, routes); err != nil {
		t.Fatalf("add routes: %v", err)
	}

	dayRoutes, err := s.RoutesForDay(ctx, 1, dayOne)
	if err != nil {
		t.Fatalf("routes for day: %v", err)
	}
	if len(dayRoutes) != 2 {
		t.Fatalf("expected the 2 first-day routes, got %d", len(dayRoutes))
	}
	if !dayRoutes[0].Departure.Before(dayRoutes[1].Departure) {
		t.Fatal("routes must come back in departure order")
	}

	asn := []model.Assignment{
		{RouteID: dayRoutes[0].ID, VehicleID: 1, Shift: 1, Cost: 0},
		{RouteID: dayRoutes[1].ID, VehicleID: 1, Shift: 2, Cost: 0.5},
	}
	if err := s.SaveAssignments(ctx, 1, asn); err != nil {
		t.Fatalf("save assignments: %v", err)
	}
	assigned, err := s.AssignedRoutes(ctx, 1)
	if err != nil {
		t.Fatalf("assigned routes: %v", err)
	}
	if len(assigned) != 2 {
		t.Fatalf("expected 2 assigned routes, got %d", len(assigned))
	}
	for _, r := range assigned {
		if r.VehicleID != 1 {
			t.Fatalf("vehicle slot missing on %+v", r)
		}
	}
}

func TestSeriesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	prices := map[time.Time]float64{
		base:                       0.10,
		base.Add(30 * time.Minute): 0.25,
	}
	if err := s.AddPrices(ctx, 9, prices); err != nil {
		t.Fatalf("add prices: %v", err)
	}
	got, err := s.Prices(ctx, 9)
	if err != nil {
		t.Fatalf("get prices: %v", err)
	}
	if len(got) != 2 || got[base] != 0.10 {
		t.Fatalf("price round trip: %v", got)
	}

	if err := s.PutDistribution(ctx, 9, 12.5); err != nil {
		t.Fatalf("put distribution: %v", err)
	}
	charge, err := s.ExcessCharge(ctx, 9)
	if err != nil || charge != 12.5 {
		t.Fatalf("excess charge: %v %v", charge, err)
	}
	// Unknown distributions price excess at zero.
	charge, err = s.ExcessCharge(ctx, 42)
	if err != nil || charge != 0 {
		t.Fatalf("unknown distribution: %v %v", charge, err)
	}

	load := map[time.Time]float64{base: 30}
	if err := s.AddSiteLoad(ctx, 1, load); err != nil {
		t.Fatalf("add load: %v", err)
	}
	gotLoad, err := s.SiteLoad(ctx, 1)
	if err != nil || gotLoad[base] != 30 {
		t.Fatalf("site load round trip: %v %v", gotLoad, err)
	}
}

func TestScenarioLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScenario(ctx, model.Scenario{
		AllocationID: 1, RunID: uuid.NewString(), SmartCharging: true, HorizonDays: 7,
	})
	if err != nil {
		t.Fatalf("create scenario: %v", err)
	}
	scn, err := s.Scenario(ctx, id)
	if err != nil {
		t.Fatalf("get scenario: %v", err)
	}
	if scn.Status != model.ScenarioPending || !scn.SmartCharging || scn.HorizonDays != 7 {
		t.Fatalf("scenario round trip: %+v", scn)
	}

	if err := s.SetScenarioStatus(ctx, id, model.ScenarioRunning); err != nil {
		t.Fatalf("set status: %v", err)
	}
	scn, _ = s.Scenario(ctx, id)
	if scn.Status != model.ScenarioRunning {
		t.Fatalf("status not persisted: %v", scn.Status)
	}

	rows := []model.ScheduleRow{
		{ScenarioID: id, VehicleID: 1, Period: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), PowerKW: 11, SoCKWh: 42},
		{ScenarioID: id, VehicleID: 1, Period: time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC), PowerKW: 0, SoCKWh: 42},
	}
	if err := s.SaveSchedule(ctx, rows); err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	// Re-writing the same day is idempotent.
	if err := s.SaveSchedule(ctx, rows); err != nil {
		t.Fatalf("re-save schedule: %v", err)
	}
	gotRows, err := s.Schedule(ctx, id)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(gotRows) != 2 || gotRows[0].PowerKW != 11 {
		t.Fatalf("schedule round trip: %v", gotRows)
	}

	sum := model.ScenarioSummary{
		ScenarioID: id, BreachDays: 1, MagicDays: 0, TimeoutDays: 0,
		BreachPeriods: 3, OutputKWh: 120.5, ExcessCost: 4.2,
		MinSoCKWh: 10, MaxSoCKWh: 50, Status: model.ScenarioComplete,
	}
	if err := s.SaveScenarioSummary(ctx, sum); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	if err := s.SetScenarioStatus(ctx, id, model.ScenarioComplete); err != nil {
		t.Fatalf("complete: %v", err)
	}
	scn, _ = s.Scenario(ctx, id)
	if scn.Status != model.ScenarioComplete {
		t.Fatalf("lifecycle end state: %v", scn.Status)
	}
}
