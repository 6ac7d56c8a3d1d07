package allocation

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/model"
)

// Params bundles the inputs shared by the cost model, the solver and the
// escalation loop for one allocation run.
type Params struct {
	Planner    config.Planner
	Specs      model.SpecPair
	Turnaround time.Duration // between consecutive legs of one vehicle
	Connect    time.Duration // lost to plugging in before intershift charge
	// ChargerAC and ChargerDC are the site charger powers; the effective
	// intershift rate is capped by the slowest of site and vehicle.
	ChargerAC   float64
	ChargerDC   float64
	CapVehicles bool
	MaxFleet    int
}

func (p Params) effectiveAC() float64 {
	return math.Min(math.Min(p.Specs[0].ChargeAC, p.Specs[1].ChargeAC), p.ChargerAC)
}

func (p Params) effectiveDC() float64 {
	return math.Min(math.Min(p.Specs[0].ChargeDC, p.Specs[1].ChargeDC), p.ChargerDC)
}

// Leg is one side of a candidate pairing: either a real first-shift route or
// the merged duty of all shifts already assigned to a vehicle slot.
type Leg struct {
	Vehicle      int
	Departure    time.Time
	Arrival      time.Time
	EquivMileage float64 // real-world mileage, distance derated by the range factor
	Payload      float64
	Crates       float64
	// LastLegMileage floors the intershift credit: charging between legs
	// can never shrink a duty below its final leg.
	LastLegMileage float64
}

// legFromRoute derates the route distance into real-world mileage.
func legFromRoute(r model.Route, planner config.Planner) Leg {
	equiv := r.DistanceMi / planner.RangeFactor
	return Leg{
		Vehicle:        r.VehicleID,
		Departure:      r.Departure,
		Arrival:        r.Arrival,
		EquivMileage:   equiv,
		Payload:        r.Payload,
		Crates:         r.Crates,
		LastLegMileage: equiv,
	}
}

// expandSlots places the duties on a fixed grid of N vehicle slots. Slots
// with no duty yet get a zero leg with an epoch arrival, so any second-shift
// route can follow them.
func expandSlots(duties []Leg, n int) []Leg {
	byVehicle := make(map[int]Leg, len(duties))
	for _, d := range duties {
		byVehicle[d.Vehicle] = d
	}
	legs := make([]Leg, n)
	for v := 1; v <= n; v++ {
		if d, ok := byVehicle[v]; ok {
			legs[v-1] = d
			continue
		}
		legs[v-1] = Leg{Vehicle: v, Departure: epoch, Arrival: epoch}
	}
	return legs
}

var epoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// CostTable holds the feasibility cost of every (route, vehicle slot)
// combination of one shift.
type CostTable struct {
	RouteIDs []int64
	Vehicles []int
	// Cost is indexed [route, vehicle].
	Cost *mat.Dense
}

// intershiftSlots counts the whole charging periods between the first leg's
// end and the second leg's start, after the connect time. Negative when the
// legs overlap.
func intershiftSlots(end1, start2 time.Time, connect time.Duration, period time.Duration) int {
	return int((start2.Sub(end1) - connect) / period)
}

// BuildCostTable scores every pairing of a first leg (vehicle slot) with a
// second-shift route. Costs sit on a fixed ordinal scale, best first:
//
//	1.0       small tier, no intershift charging
//	0.75-1    small tier with slow (AC) intershift charging
//	0.5-0.75  small tier with fast (DC) intershift charging
//	0.5       large tier, no intershift charging
//	0.25-0.5  large tier with slow intershift charging
//	0-0.25    large tier with fast intershift charging
//	-N        infeasible; a floor the solver only picks when forced
//
// The infeasible floor keeps the assignment problem solvable for any input:
// no pairing is forbidden outright, just maximally unattractive.
func BuildCostTable(first []Leg, second []model.Route, p Params) CostTable {
	n := len(first)
	m := len(second)
	t := CostTable{
		RouteIDs: make([]int64, m),
		Vehicles: make([]int, n),
		Cost:     mat.NewDense(max(m, 1), max(n, 1), nil),
	}
	for j, leg := range first {
		t.Vehicles[j] = leg.Vehicle
	}
	small, large := p.Specs.Small(), p.Specs.Large()
	period := time.Duration(p.Planner.PeriodMinutes) * time.Minute
	eff := p.Planner.ChargerEfficiency
	fract := p.Planner.PeriodHours()
	acRate, dcRate := p.effectiveAC(), p.effectiveDC()
	derog := p.Planner.PayloadDerogation

	for i, r := range second {
		t.RouteIDs[i] = r.ID
		routeLeg := legFromRoute(r, p.Planner)
		for j, leg := range first {
			total := leg.EquivMileage + routeLeg.EquivMileage
			maxPayload := math.Max(leg.Payload, r.Payload)
			maxCrates := math.Max(leg.Crates, r.Crates)
			capLarge := maxPayload <= large.MaxPayload+derog && maxCrates <= large.MaxCrates
			capSmall := maxPayload <= small.MaxPayload+derog && maxCrates <= small.MaxCrates

			slots := intershiftSlots(leg.Arrival, r.Departure, p.Connect, period)
			isMaxAC := acRate * eff * fract * float64(slots)
			isMaxDC := dcRate * eff * fract * float64(slots)
			turnOK := !leg.Arrival.After(r.Departure.Add(-p.Turnaround))

			cost := -float64(n)
			if turnOK {
				// Ordered from least to most preferred: later rules
				// overwrite earlier ones, matching the ordinal scale.
				if total <= large.RangeMi() && capLarge {
					cost = 0.5
				}
				if total <= small.RangeMi() && capSmall {
					cost = 1
				}
				largeKWh := total * large.EnergyUse
				if capLarge && largeKWh > large.BatteryKWh && largeKWh-isMaxAC <= large.BatteryKWh {
					cost = 0.5 - 0.25*(largeKWh-large.BatteryKWh)/isMaxAC
				}
				if capLarge && largeKWh > large.BatteryKWh+isMaxAC && largeKWh-isMaxDC <= large.BatteryKWh {
					cost = 0.25 - 0.25*(largeKWh-large.BatteryKWh)/isMaxDC
				}
				smallKWh := total * small.EnergyUse
				legsFit := leg.EquivMileage <= small.RangeMi() && routeLeg.EquivMileage <= small.RangeMi()
				if capSmall && legsFit && smallKWh > small.BatteryKWh && smallKWh-isMaxAC < small.BatteryKWh {
					cost = 1 - 0.25*(smallKWh-small.BatteryKWh)/isMaxAC
				}
				if capSmall && legsFit && smallKWh >= small.BatteryKWh+isMaxAC && smallKWh-isMaxDC < small.BatteryKWh {
					cost = 0.75 - 0.25*(smallKWh-small.BatteryKWh)/isMaxDC
				}
			}
			t.Cost.Set(i, j, cost)
		}
	}
	return t
}
