package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/evfleet/fleetplan/core/logger"
	"github.com/evfleet/fleetplan/core/model"
)

// dayState enumerates the escalation state machine.
type dayState int

const (
	stateTry dayState = iota
	stateEscalate
	stateDone
	stateCapped
)

// DayResult is the outcome of allocating one calendar day.
type DayResult struct {
	Date        time.Time
	FleetSize   int
	Assignments []model.Assignment
	// MinCost is the worst pairing cost of the day; negative means at
	// least one pairing was forced through infeasible.
	MinCost  float64
	Degraded bool
	Retries  int
}

// AllocateDay runs the bounded escalation loop for one day's routes.
//
// The first shift is assigned trivially, one route per slot in arrival
// order. Every later shift is solved against the merged duties of the
// shifts before it. When the day's minimum pairing cost is negative the
// fleet grows by one and the day restarts, unless the fleet is capped or
// the maximum size guard trips, in which case the degraded result stands.
func AllocateDay(log logger.Logger, p Params, routes []model.Route, startN int) (DayResult, error) {
	res := DayResult{FleetSize: startN}
	if len(routes) == 0 {
		return res, nil
	}
	res.Date = routes[0].Date()

	shifts := splitShifts(routes)
	first := shifts[0]
	sort.Slice(first, func(i, j int) bool { return first[i].Arrival.Before(first[j].Arrival) })

	n := startN
	if n < len(first) {
		n = len(first)
	}
	state := stateTry
	for state == stateTry {
		asn, minCost, err := solveDay(first, shifts, n, p)
		if err != nil {
			return res, fmt.Errorf("fleet of %d: %w", n, err)
		}
		res.Assignments = asn
		res.MinCost = minCost
		res.FleetSize = n

		switch {
		case minCost >= 0:
			state = stateDone
		case p.CapVehicles:
			state = stateCapped
		case n+1 > p.MaxFleet:
			log.Warnf("fleet size guard hit at %d vehicles, accepting degraded day %s", n, res.Date.Format("2006-01-02"))
			state = stateCapped
		default:
			state = stateEscalate
		}
		if state == stateEscalate {
			log.Debugf("day %s infeasible with %d vehicles (min cost %.2f), escalating", res.Date.Format("2006-01-02"), n, minCost)
			escalationRetries.Inc()
			n++
			res.Retries++
			state = stateTry
		}
	}
	res.Degraded = state == stateCapped
	if res.Degraded {
		degradedDays.Inc()
	}
	return res, nil
}

// solveDay assigns all shifts of the day for a fixed fleet size.
func solveDay(first []model.Route, shifts [][]model.Route, n int, p Params) ([]model.Assignment, float64, error) {
	asn := make([]model.Assignment, 0, len(first))
	duties := make([]Leg, 0, len(first))
	for slot, r := range first {
		leg := legFromRoute(r, p.Planner)
		leg.Vehicle = slot + 1
		duties = append(duties, leg)
		asn = append(asn, model.Assignment{RouteID: r.ID, VehicleID: slot + 1, Shift: r.Shift, Cost: 0})
	}

	minCost := math.Inf(1)
	if len(asn) > 0 {
		minCost = 0
	}
	for s := 1; s < len(shifts); s++ {
		second := shifts[s]
		if len(second) == 0 {
			continue
		}
		sort.Slice(second, func(i, j int) bool { return second[i].ID < second[j].ID })
		legs := expandSlots(duties, n)
		table := BuildCostTable(legs, second, p)
		shiftAsn, err := SolveAssignment(table, second[0].Shift)
		if err != nil {
			return nil, 0, err
		}
		for _, a := range shiftAsn {
			if a.Cost < minCost {
				minCost = a.Cost
			}
		}
		asn = append(asn, shiftAsn...)
		if s+1 < len(shifts) {
			duties = mergeDuties(duties, second, shiftAsn, p)
		}
	}
	if math.IsInf(minCost, 1) {
		minCost = 0
	}
	return asn, minCost, nil
}

// splitShifts groups the day's routes by shift number, in shift order.
func splitShifts(routes []model.Route) [][]model.Route {
	maxShift := 1
	for _, r := range routes {
		if r.Shift > maxShift {
			maxShift = r.Shift
		}
	}
	shifts := make([][]model.Route, maxShift)
	for _, r := range routes {
		s := r.Shift
		if s < 1 {
			s = 1
		}
		shifts[s-1] = append(shifts[s-1], r)
	}
	return shifts
}

// mergeDuties folds a solved shift into the per-vehicle duties so the next
// shift is matched against the whole day so far. Mileage sums across legs
// and is then credited with the intershift charging the gap allows, floored
// at the final leg: a vehicle must still finish its last run on one charge.
func mergeDuties(first []Leg, second []model.Route, asn []model.Assignment, p Params) []Leg {
	vehicleOf := make(map[int64]int, len(asn))
	for _, a := range asn {
		vehicleOf[a.RouteID] = a.VehicleID
	}

	merged := make(map[int]Leg, len(first))
	for _, d := range first {
		merged[d.Vehicle] = d
	}
	for _, r := range second {
		v, ok := vehicleOf[r.ID]
		if !ok {
			continue
		}
		leg := legFromRoute(r, p.Planner)
		leg.Vehicle = v
		prev, ok := merged[v]
		if !ok {
			merged[v] = leg
			continue
		}
		gap := later(prev.Departure, leg.Departure).Sub(earlier(prev.Arrival, leg.Arrival)) - p.Connect
		slots := int(gap / (time.Duration(p.Planner.PeriodMinutes) * time.Minute))
		if slots < 0 {
			slots = 0
		}
		isKWh := float64(slots) * p.Planner.PeriodHours() * p.ChargerDC
		isMiles := isKWh / p.Specs.Small().EnergyUse

		sum := prev.EquivMileage + leg.EquivMileage
		credited := math.Max(sum-isMiles, leg.LastLegMileage)
		merged[v] = Leg{
			Vehicle:        v,
			Departure:      earlier(prev.Departure, leg.Departure),
			Arrival:        later(prev.Arrival, leg.Arrival),
			EquivMileage:   credited,
			Payload:        math.Max(prev.Payload, leg.Payload),
			Crates:         math.Max(prev.Crates, leg.Crates),
			LastLegMileage: leg.LastLegMileage,
		}
	}

	duties := make([]Leg, 0, len(merged))
	for _, d := range merged {
		duties = append(duties, d)
	}
	sort.Slice(duties, func(i, j int) bool { return duties[i].Vehicle < duties[j].Vehicle })
	return duties
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
