// Package store persists planner inputs and outputs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/evfleet/fleetplan/core/model"
)

// SQLite backs both planning engines with a single database file. It
// implements allocation.Store and schedule.Store.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sites (
    id              INTEGER PRIMARY KEY,
    turnaround_min  INTEGER NOT NULL DEFAULT 0,
    connect_min     INTEGER NOT NULL DEFAULT 0,
    capacity_kw     REAL    NOT NULL DEFAULT 0,
    distribution_id INTEGER NOT NULL DEFAULT -1
);
CREATE TABLE IF NOT EXISTS vehicle_specs (
    id          INTEGER PRIMARY KEY,
    fuel        TEXT NOT NULL,
    battery_kwh REAL NOT NULL DEFAULT 0,
    energy_use  REAL NOT NULL DEFAULT 0,
    charge_ac   REAL NOT NULL DEFAULT 0,
    charge_dc   REAL NOT NULL DEFAULT 0,
    max_payload REAL NOT NULL DEFAULT 0,
    max_crates  REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS allocations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT    NOT NULL,
    site_id       INTEGER NOT NULL,
    start_date    INTEGER NOT NULL,
    end_date      INTEGER NOT NULL,
    small_spec_id INTEGER NOT NULL,
    large_spec_id INTEGER NOT NULL,
    charger_ac    REAL    NOT NULL DEFAULT 0,
    charger_dc    REAL    NOT NULL DEFAULT 0,
    num_fast      INTEGER NOT NULL DEFAULT 0,
    fleet_size    INTEGER NOT NULL DEFAULT 0,
    cap_vehicles  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS routes (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    allocation_id  INTEGER NOT NULL,
    shift          INTEGER NOT NULL DEFAULT 1,
    departure      INTEGER NOT NULL,
    arrival        INTEGER NOT NULL,
    distance_mi    REAL    NOT NULL DEFAULT 0,
    payload        REAL    NOT NULL DEFAULT 0,
    crates         REAL    NOT NULL DEFAULT 0,
    site_start     INTEGER NOT NULL DEFAULT 0,
    site_end       INTEGER NOT NULL DEFAULT 0,
    energy_kwh     REAL    NOT NULL DEFAULT 0,
    recharge_hours REAL    NOT NULL DEFAULT 0,
    vehicle_id     INTEGER NOT NULL DEFAULT 0,
    spec_id        INTEGER NOT NULL DEFAULT 0,
    cost           REAL    NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_routes_alloc_departure ON routes(allocation_id, departure);
CREATE TABLE IF NOT EXISTS distributions (
    id            INTEGER PRIMARY KEY,
    excess_charge REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS prices (
    distribution_id INTEGER NOT NULL,
    ts              INTEGER NOT NULL,
    price_kwh       REAL    NOT NULL,
    PRIMARY KEY(distribution_id, ts)
);
CREATE TABLE IF NOT EXISTS site_load (
    site_id INTEGER NOT NULL,
    ts      INTEGER NOT NULL,
    load_kw REAL    NOT NULL,
    PRIMARY KEY(site_id, ts)
);
CREATE TABLE IF NOT EXISTS scenarios (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    allocation_id  INTEGER NOT NULL,
    run_id         TEXT    NOT NULL,
    smart_charging INTEGER NOT NULL DEFAULT 1,
    horizon_days   INTEGER NOT NULL DEFAULT 0,
    status         TEXT    NOT NULL DEFAULT 'pending',
    breach_days    INTEGER NOT NULL DEFAULT 0,
    magic_days     INTEGER NOT NULL DEFAULT 0,
    timeout_days   INTEGER NOT NULL DEFAULT 0,
    breach_periods INTEGER NOT NULL DEFAULT 0,
    output_kwh     REAL    NOT NULL DEFAULT 0,
    excess_cost    REAL    NOT NULL DEFAULT 0,
    min_soc_kwh    REAL    NOT NULL DEFAULT 0,
    max_soc_kwh    REAL    NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS schedule (
    scenario_id INTEGER NOT NULL,
    vehicle_id  INTEGER NOT NULL,
    ts          INTEGER NOT NULL,
    power_kw    REAL    NOT NULL,
    soc_kwh     REAL    NOT NULL,
    PRIMARY KEY(scenario_id, vehicle_id, ts)
);`

// Open opens or creates the database and ensures the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// PutSite inserts or replaces a site row.
func (s *SQLite) PutSite(ctx context.Context, site model.Site) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sites
        (id, turnaround_min, connect_min, capacity_kw, distribution_id)
        VALUES (?, ?, ?, ?, ?)`,
		site.ID, site.TurnaroundMin, site.ConnectMin, site.CapacityKW, site.DistributionID)
	return err
}

// Site loads one site.
func (s *SQLite) Site(ctx context.Context, id int64) (model.Site, error) {
	var site model.Site
	err := s.db.QueryRowContext(ctx, `SELECT id, turnaround_min, connect_min, capacity_kw, distribution_id
        FROM sites WHERE id = ?`, id).
		Scan(&site.ID, &site.TurnaroundMin, &site.ConnectMin, &site.CapacityKW, &site.DistributionID)
	if err != nil {
		return model.Site{}, fmt.Errorf("site %d: %w", id, err)
	}
	return site, nil
}

// PutVehicleSpec inserts or replaces a vehicle specification.
func (s *SQLite) PutVehicleSpec(ctx context.Context, spec model.VehicleSpec) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO vehicle_specs
        (id, fuel, battery_kwh, energy_use, charge_ac, charge_dc, max_payload, max_crates)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.ID, string(spec.Fuel), spec.BatteryKWh, spec.EnergyUse,
		spec.ChargeAC, spec.ChargeDC, spec.MaxPayload, spec.MaxCrates)
	return err
}

// VehicleSpec loads one vehicle specification.
func (s *SQLite) VehicleSpec(ctx context.Context, id int64) (model.VehicleSpec, error) {
	var spec model.VehicleSpec
	var fuel string
	err := s.db.QueryRowContext(ctx, `SELECT id, fuel, battery_kwh, energy_use,
        charge_ac, charge_dc, max_payload, max_crates
        FROM vehicle_specs WHERE id = ?`, id).
		Scan(&spec.ID, &fuel, &spec.BatteryKWh, &spec.EnergyUse,
			&spec.ChargeAC, &spec.ChargeDC, &spec.MaxPayload, &spec.MaxCrates)
	if err != nil {
		return model.VehicleSpec{}, fmt.Errorf("vehicle spec %d: %w", id, err)
	}
	spec.Fuel = model.FuelType(fuel)
	return spec, nil
}

// CreateAllocation inserts an allocation and returns its id. An empty run id
// gets a fresh UUID.
func (s *SQLite) CreateAllocation(ctx context.Context, a model.Allocation) (int64, error) {
	if a.RunID == "" {
		a.RunID = uuid.NewString()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO allocations
        (run_id, site_id, start_date, end_date, small_spec_id, large_spec_id,
         charger_ac, charger_dc, num_fast, fleet_size, cap_vehicles)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.SiteID, a.StartDate.Unix(), a.EndDate.Unix(),
		a.SmallSpecID, a.LargeSpecID, a.ChargerAC, a.ChargerDC,
		a.NumFast, a.FleetSize, boolInt(a.CapVehicles))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Allocation loads one allocation.
func (s *SQLite) Allocation(ctx context.Context, id int64) (model.Allocation, error) {
	var a model.Allocation
	var start, end int64
	var capped int
	err := s.db.QueryRowContext(ctx, `SELECT id, run_id, site_id, start_date, end_date,
        small_spec_id, large_spec_id, charger_ac, charger_dc, num_fast, fleet_size, cap_vehicles
        FROM allocations WHERE id = ?`, id).
		Scan(&a.ID, &a.RunID, &a.SiteID, &start, &end, &a.SmallSpecID, &a.LargeSpecID,
			&a.ChargerAC, &a.ChargerDC, &a.NumFast, &a.FleetSize, &capped)
	if err != nil {
		return model.Allocation{}, fmt.Errorf("allocation %d: %w", id, err)
	}
	a.StartDate = time.Unix(start, 0).UTC()
	a.EndDate = time.Unix(end, 0).UTC()
	a.CapVehicles = capped != 0
	return a, nil
}

// UpdateFleetSize persists the escalated fleet size.
func (s *SQLite) UpdateFleetSize(ctx context.Context, allocationID int64, fleetSize int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE allocations SET fleet_size = ? WHERE id = ?`,
		fleetSize, allocationID)
	return err
}

// AddRoutes inserts route legs for an allocation in one transaction.
func (s *SQLite) AddRoutes(ctx context.Context, routes []model.Route) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO routes
        (allocation_id, shift, departure, arrival, distance_mi, payload, crates,
         site_start, site_end, energy_kwh, recharge_hours, vehicle_id, spec_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range routes {
		if _, err := stmt.ExecContext(ctx, r.AllocationID, r.Shift,
			r.Departure.Unix(), r.Arrival.Unix(), r.DistanceMi, r.Payload, r.Crates,
			r.SiteStart, r.SiteEnd, r.EnergyKWh, r.RechargeHours, r.VehicleID, r.SpecID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const routeColumns = `id, allocation_id, shift, departure, arrival, distance_mi,
    payload, crates, site_start, site_end, energy_kwh, recharge_hours, vehicle_id, spec_id`

// RoutesForDay returns the allocation's routes departing on the given day.
func (s *SQLite) RoutesForDay(ctx context.Context, allocationID int64, day time.Time) ([]model.Route, error) {
	from := day.Unix()
	to := day.AddDate(0, 0, 1).Unix()
	rows, err := s.db.QueryContext(ctx, `SELECT `+routeColumns+`
        FROM routes WHERE allocation_id = ? AND departure >= ? AND departure < ?
        ORDER BY departure`, allocationID, from, to)
	if err != nil {
		return nil, err
	}
	return scanRoutes(rows)
}

// AssignedRoutes returns the allocation's routes that hold a vehicle slot.
func (s *SQLite) AssignedRoutes(ctx context.Context, allocationID int64) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+routeColumns+`
        FROM routes WHERE allocation_id = ? AND vehicle_id > 0
        ORDER BY departure`, allocationID)
	if err != nil {
		return nil, err
	}
	return scanRoutes(rows)
}

func scanRoutes(rows *sql.Rows) ([]model.Route, error) {
	defer func() { _ = rows.Close() }()
	var out []model.Route
	for rows.Next() {
		var r model.Route
		var dep, arr int64
		if err := rows.Scan(&r.ID, &r.AllocationID, &r.Shift, &dep, &arr,
			&r.DistanceMi, &r.Payload, &r.Crates, &r.SiteStart, &r.SiteEnd,
			&r.EnergyKWh, &r.RechargeHours, &r.VehicleID, &r.SpecID); err != nil {
			return nil, err
		}
		r.Departure = time.Unix(dep, 0).UTC()
		r.Arrival = time.Unix(arr, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAssignments tags routes with their vehicle slots in one transaction.
func (s *SQLite) SaveAssignments(ctx context.Context, allocationID int64, asn []model.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, a := range asn {
		if _, err := tx.ExecContext(ctx, `UPDATE routes SET vehicle_id = ?, cost = ?
            WHERE id = ? AND allocation_id = ?`,
			a.VehicleID, a.Cost, a.RouteID, allocationID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// PutDistribution inserts or replaces a distribution with its exceeded
// capacity charge.
func (s *SQLite) PutDistribution(ctx context.Context, id int64, excessCharge float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO distributions (id, excess_charge)
        VALUES (?, ?)`, id, excessCharge)
	return err
}

// ExcessCharge returns the distribution's exceeded capacity price, zero if
// the distribution is unknown.
func (s *SQLite) ExcessCharge(ctx context.Context, distributionID int64) (float64, error) {
	var charge float64
	err := s.db.QueryRowContext(ctx, `SELECT excess_charge FROM distributions WHERE id = ?`,
		distributionID).Scan(&charge)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return charge, err
}

// AddPrices inserts or replaces tariff points for a distribution.
func (s *SQLite) AddPrices(ctx context.Context, distributionID int64, prices map[time.Time]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for ts, price := range prices {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO prices
            (distribution_id, ts, price_kwh) VALUES (?, ?, ?)`,
			distributionID, ts.Unix(), price); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Prices returns every published tariff point of a distribution.
func (s *SQLite) Prices(ctx context.Context, distributionID int64) (map[time.Time]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, price_kwh FROM prices
        WHERE distribution_id = ? ORDER BY ts`, distributionID)
	if err != nil {
		return nil, err
	}
	return scanSeries(rows)
}

// AddSiteLoad inserts or replaces ambient load points for a site.
func (s *SQLite) AddSiteLoad(ctx context.Context, siteID int64, loadKW map[time.Time]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for ts, kw := range loadKW {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO site_load
            (site_id, ts, load_kw) VALUES (?, ?, ?)`,
			siteID, ts.Unix(), kw); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SiteLoad returns the site's ambient draw series.
func (s *SQLite) SiteLoad(ctx context.Context, siteID int64) (map[time.Time]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, load_kw FROM site_load
        WHERE site_id = ? ORDER BY ts`, siteID)
	if err != nil {
		return nil, err
	}
	return scanSeries(rows)
}

func scanSeries(rows *sql.Rows) (map[time.Time]float64, error) {
	defer func() { _ = rows.Close() }()
	out := map[time.Time]float64{}
	for rows.Next() {
		var ts int64
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		out[time.Unix(ts, 0).UTC()] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateScenario inserts a pending scenario and returns its id. An empty run
// id gets a fresh UUID.
func (s *SQLite) CreateScenario(ctx context.Context, scn model.Scenario) (int64, error) {
	if scn.RunID == "" {
		scn.RunID = uuid.NewString()
	}
	status := scn.Status
	if status == "" {
		status = model.ScenarioPending
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO scenarios
        (allocation_id, run_id, smart_charging, horizon_days, status)
        VALUES (?, ?, ?, ?, ?)`,
		scn.AllocationID, scn.RunID, boolInt(scn.SmartCharging), scn.HorizonDays, string(status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Scenario loads one scenario.
func (s *SQLite) Scenario(ctx context.Context, id int64) (model.Scenario, error) {
	var scn model.Scenario
	var smart int
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT id, allocation_id, run_id, smart_charging,
        horizon_days, status FROM scenarios WHERE id = ?`, id).
		Scan(&scn.ID, &scn.AllocationID, &scn.RunID, &smart, &scn.HorizonDays, &status)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("scenario %d: %w", id, err)
	}
	scn.SmartCharging = smart != 0
	scn.Status = model.ScenarioStatus(status)
	return scn, nil
}

// SetScenarioStatus flips the scenario lifecycle state.
func (s *SQLite) SetScenarioStatus(ctx context.Context, id int64, status model.ScenarioStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scenarios SET status = ? WHERE id = ?`,
		string(status), id)
	return err
}

// SaveScenarioSummary writes the aggregated run figures onto the scenario.
func (s *SQLite) SaveScenarioSummary(ctx context.Context, sum model.ScenarioSummary) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scenarios SET
        breach_days = ?, magic_days = ?, timeout_days = ?, breach_periods = ?,
        output_kwh = ?, excess_cost = ?, min_soc_kwh = ?, max_soc_kwh = ?
        WHERE id = ?`,
		sum.BreachDays, sum.MagicDays, sum.TimeoutDays, sum.BreachPeriods,
		sum.OutputKWh, sum.ExcessCost, sum.MinSoCKWh, sum.MaxSoCKWh, sum.ScenarioID)
	return err
}

// SaveSchedule writes one day of profile rows in a single transaction. Rows
// are idempotent on (scenario, vehicle, period).
func (s *SQLite) SaveSchedule(ctx context.Context, rows []model.ScheduleRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO schedule
        (scenario_id, vehicle_id, ts, power_kw, soc_kwh) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ScenarioID, r.VehicleID,
			r.Period.Unix(), r.PowerKW, r.SoCKWh); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Schedule returns a scenario's persisted profile ordered by period.
func (s *SQLite) Schedule(ctx context.Context, scenarioID int64) ([]model.ScheduleRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scenario_id, vehicle_id, ts, power_kw, soc_kwh
        FROM schedule WHERE scenario_id = ? ORDER BY ts, vehicle_id`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ScheduleRow
	for rows.Next() {
		var r model.ScheduleRow
		var ts int64
		if err := rows.Scan(&r.ScenarioID, &r.VehicleID, &ts, &r.PowerKW, &r.SoCKWh); err != nil {
			return nil, err
		}
		r.Period = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
