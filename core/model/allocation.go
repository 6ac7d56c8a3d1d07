package model

import (
	"fmt"
	"time"
)

// Site carries the depot parameters the planners need.
type Site struct {
	ID             int64
	TurnaroundMin  int     // minutes between consecutive legs of one vehicle
	ConnectMin     int     // minutes to plug in after arrival
	CapacityKW     float64 // agreed supply capacity before derating
	DistributionID int64   // tariff series key; -1 when no tariff applies
}

// Allocation scopes one optimization run: the date range, the site, the two
// vehicle tiers and the fleet sizing policy.
type Allocation struct {
	ID          int64
	RunID       string // uuid of the run that created this allocation
	SiteID      int64
	StartDate   time.Time
	EndDate     time.Time
	SmallSpecID int64
	LargeSpecID int64

	// ChargerAC and ChargerDC are the site charger powers in kW; the pool
	// holds NumFast fast (DC) posts.
	ChargerAC float64
	ChargerDC float64
	NumFast   int

	// FleetSize is the vehicle count the escalation loop settles on. It is
	// both the starting guess and, after a run, the persisted result.
	FleetSize int
	// CapVehicles stops the escalation loop at the first infeasibility
	// instead of growing the fleet.
	CapVehicles bool
}

// Days returns the inclusive calendar days covered by the allocation.
func (a Allocation) Days() []time.Time {
	var days []time.Time
	for d := a.StartDate; !d.After(a.EndDate); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Validate checks the run scope is plausible.
func (a Allocation) Validate() error {
	if a.EndDate.Before(a.StartDate) {
		return fmt.Errorf("allocation %d: end date before start date", a.ID)
	}
	if a.FleetSize < 0 {
		return fmt.Errorf("allocation %d: negative fleet size", a.ID)
	}
	return nil
}
