package model

import (
	"fmt"
	"time"
)

// Route is one delivery leg fetched from the persistence layer. Routes are
// immutable inputs: the assignment engine only ever tags them with a vehicle
// slot through an Assignment record.
type Route struct {
	ID           int64
	AllocationID int64
	Shift        int // 1-based shift number within the day
	Departure    time.Time
	Arrival      time.Time
	DistanceMi   float64
	Payload      float64
	Crates       float64
	SiteStart    int64
	SiteEnd      int64

	// EnergyKWh is the electric energy the leg consumes; only routes with a
	// positive value take part in charge scheduling.
	EnergyKWh float64
	// RechargeHours bounds the depot dwell after arrival. Zero means the
	// vehicle stays chargeable until its next departure (return-to-base).
	RechargeHours float64

	// VehicleID is the slot assigned by the allocation engine, zero until
	// the assignment has run.
	VehicleID int
	// SpecID names the vehicle specification the leg was planned against.
	// Charge scheduling reads battery capacity and charge rates from it.
	SpecID int64
}

// Date returns the calendar day the route departs on, truncated in UTC.
func (r Route) Date() time.Time {
	y, m, d := r.Departure.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks that the route timestamps are ordered.
func (r Route) Validate() error {
	if !r.Arrival.After(r.Departure) {
		return fmt.Errorf("route %d: arrival must follow departure", r.ID)
	}
	if r.DistanceMi < 0 {
		return fmt.Errorf("route %d: negative distance", r.ID)
	}
	return nil
}

// Assignment records the outcome of one (route, vehicle) pairing for a shift.
// Cost sits on the ordinal feasibility scale; negative values mark pairings
// that were forced through as a maximization floor.
type Assignment struct {
	RouteID   int64
	VehicleID int
	Shift     int
	Cost      float64
}
