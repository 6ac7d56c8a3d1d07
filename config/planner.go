package config

import "fmt"

// Planner collects the model constants shared by the allocation and
// scheduling engines. A single value is built at startup and passed to every
// component; nothing reads these from package state.
type Planner struct {
	// PeriodMinutes is the grid discretization; 30 gives 48 periods a day.
	PeriodMinutes int `json:"period_minutes"`
	// ChargerEfficiency scales delivered energy before it reaches the pack.
	ChargerEfficiency float64 `json:"charger_efficiency"`
	// PayloadDerogation uniformly relaxes the max-load check.
	PayloadDerogation float64 `json:"payload_derogation"`
	// RangeFactor derates quoted range to real-world mileage.
	RangeFactor float64 `json:"range_factor"`
	// DefaultPrice applies where the tariff series has no value.
	DefaultPrice float64 `json:"default_price"`
	// CapacityDerate scales the agreed site capacity before scheduling.
	CapacityDerate float64 `json:"capacity_derate"`
	// BreachMargin scales the emergency headroom granted in breach tier.
	BreachMargin float64 `json:"breach_margin"`
	// DayStartHours offsets the scheduling day from midnight.
	DayStartHours int `json:"day_start_hours"`
	// OptimizerTimeoutSec bounds one day's optimizer call.
	OptimizerTimeoutSec int `json:"optimizer_timeout_sec"`
	// MaxFleetSize guards the escalation loop.
	MaxFleetSize int `json:"max_fleet_size"`
	// ChargeBonus and TimeWeight shape the optimizer objective: a large
	// reward per delivered kWh and a small growing penalty per later period.
	ChargeBonus float64 `json:"charge_bonus"`
	TimeWeight  float64 `json:"time_weight"`
	// PowerFactor amortizes excess-capacity energy into billable kVA.
	PowerFactor float64 `json:"power_factor"`
}

// SetDefaults applies the planning constants used in production.
func (p *Planner) SetDefaults() {
	if p.PeriodMinutes == 0 {
		p.PeriodMinutes = 30
	}
	if p.ChargerEfficiency == 0 {
		p.ChargerEfficiency = 0.9
	}
	if p.PayloadDerogation == 0 {
		p.PayloadDerogation = 725
	}
	if p.RangeFactor == 0 {
		p.RangeFactor = 0.8
	}
	if p.DefaultPrice == 0 {
		p.DefaultPrice = 0.12
	}
	if p.CapacityDerate == 0 {
		p.CapacityDerate = 0.9
	}
	if p.BreachMargin == 0 {
		p.BreachMargin = 1.0
	}
	if p.OptimizerTimeoutSec == 0 {
		p.OptimizerTimeoutSec = 300
	}
	if p.MaxFleetSize == 0 {
		p.MaxFleetSize = 200
	}
	if p.ChargeBonus == 0 {
		p.ChargeBonus = 1e5
	}
	if p.TimeWeight == 0 {
		p.TimeWeight = 0.01
	}
	if p.PowerFactor == 0 {
		p.PowerFactor = 0.95
	}
}

// Validate rejects grids that do not divide a day evenly.
func (p Planner) Validate() error {
	if p.PeriodMinutes <= 0 || (24*60)%p.PeriodMinutes != 0 {
		return fmt.Errorf("period_minutes must divide a day, got %d", p.PeriodMinutes)
	}
	if p.ChargerEfficiency <= 0 || p.ChargerEfficiency > 1 {
		return fmt.Errorf("charger_efficiency must be in (0,1], got %v", p.ChargerEfficiency)
	}
	if p.RangeFactor <= 0 || p.RangeFactor > 1 {
		return fmt.Errorf("range_factor must be in (0,1], got %v", p.RangeFactor)
	}
	if p.MaxFleetSize <= 0 {
		return fmt.Errorf("max_fleet_size must be positive")
	}
	return nil
}

// PeriodsPerDay returns the number of grid periods in one day.
func (p Planner) PeriodsPerDay() int {
	return 24 * 60 / p.PeriodMinutes
}

// PeriodHours returns the grid step as a fraction of an hour.
func (p Planner) PeriodHours() float64 {
	return float64(p.PeriodMinutes) / 60
}
