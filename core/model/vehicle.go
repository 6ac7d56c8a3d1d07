package model

import "fmt"

// FuelType identifies the drivetrain of a vehicle specification.
type FuelType string

const (
	FuelElectric FuelType = "electric"
	FuelDiesel   FuelType = "diesel"
)

// VehicleSpec describes one vehicle class taking part in an allocation.
type VehicleSpec struct {
	ID         int64
	Fuel       FuelType
	BatteryKWh float64 // usable pack capacity
	EnergyUse  float64 // kWh per mile at quoted conditions
	ChargeAC   float64 // max AC charge power in kW
	ChargeDC   float64 // max DC charge power in kW
	MaxPayload float64
	MaxCrates  float64
}

// RangeMi returns the quoted range in miles.
func (s VehicleSpec) RangeMi() float64 {
	if s.EnergyUse == 0 {
		return 0
	}
	return s.BatteryKWh / s.EnergyUse
}

// Validate checks that the specification is usable for planning.
func (s VehicleSpec) Validate() error {
	if s.BatteryKWh <= 0 {
		return fmt.Errorf("spec %d: battery capacity must be positive", s.ID)
	}
	if s.EnergyUse <= 0 {
		return fmt.Errorf("spec %d: energy use must be positive", s.ID)
	}
	return nil
}

// SpecPair holds the two active vehicle tiers of an allocation:
// index 0 is the small tier, index 1 the large one.
type SpecPair [2]VehicleSpec

// Small returns the tier-0 specification.
func (p SpecPair) Small() VehicleSpec { return p[0] }

// Large returns the tier-1 specification.
func (p SpecPair) Large() VehicleSpec { return p[1] }
