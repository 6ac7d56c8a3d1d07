package model

import "time"

// ScenarioStatus tracks the lifecycle of a charge-scheduling run.
type ScenarioStatus string

const (
	ScenarioPending  ScenarioStatus = "pending"
	ScenarioRunning  ScenarioStatus = "running"
	ScenarioComplete ScenarioStatus = "complete"
	ScenarioFailed   ScenarioStatus = "failed"
)

// Scenario is one charge-scheduling run over an allocation's fleet.
type Scenario struct {
	ID           int64
	AllocationID int64
	RunID        string
	// SmartCharging gates the site capacity and tariff constraints; when
	// false the optimizer charges against a flat default price and an
	// effectively unbounded supply.
	SmartCharging bool
	// HorizonDays caps the number of days scheduled.
	HorizonDays int
	Status      ScenarioStatus
}

// ScheduleRow is one optimized period for one vehicle. Rows are written once
// per day; the day loop never rewrites past rows.
type ScheduleRow struct {
	ScenarioID int64
	VehicleID  int
	Period     time.Time
	PowerKW    float64
	SoCKWh     float64
}

// ScenarioSummary aggregates a completed run for the scenario table.
type ScenarioSummary struct {
	ScenarioID    int64
	BreachDays    int
	MagicDays     int
	TimeoutDays   int
	BreachPeriods int
	OutputKWh     float64
	ExcessCost    float64
	MinSoCKWh     float64
	MaxSoCKWh     float64
	Status        ScenarioStatus
}
