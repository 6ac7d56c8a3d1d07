package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/model"
)

// unconstrainedKW stands in for the site limit when dumb charging is
// requested; it is far above anything a depot feed can deliver.
const unconstrainedKW = 1e7

// Problem carries every input of the charge scheduler over the full horizon.
// All matrices are [period, vehicle] on the grid in Times.
type Problem struct {
	Planner  config.Planner
	Times    []time.Time
	Dates    []time.Time
	Vehicles []int

	Avail    *mat.Dense
	Use      *mat.Dense
	Sessions []Session

	PriceKWh   []float64 // per period
	CapacityKW []float64 // per period, derated and net of site load

	BatteryKWh []float64 // per vehicle
	RateACKW   []float64 // per vehicle, clipped to the site charger
	RateDCKW   []float64
	NumFast    int

	// ExtraCapacityKW is the emergency headroom the breach tier may draw
	// above CapacityKW in any period.
	ExtraCapacityKW float64

	// RelChargeKWh is the state of charge relative to a full battery at the
	// start of the horizon, one non-positive value per vehicle.
	RelChargeKWh []float64
	// NextRequiredKWh is the (negative) energy each vehicle must hold at the
	// end of a breach-tier day; the default demands a full battery.
	NextRequiredKWh []float64
}

// PeriodsPerDay is the day stride of the grid.
func (p *Problem) PeriodsPerDay() int { return p.Planner.PeriodsPerDay() }

// DayProblem is the slice of a Problem covering one operating day. Matrices
// alias the horizon matrices; sessions are clipped and re-based to the day.
type DayProblem struct {
	*Problem
	Day      time.Time
	Lo, Hi   int // half-open period window into the horizon grid
	Avail    mat.Matrix
	Use      mat.Matrix
	Sessions []Session
	Rel      []float64 // state of charge entering the day, per vehicle
}

// Periods returns the day window length.
func (d DayProblem) Periods() int { return d.Hi - d.Lo }

// CropDay slices the horizon problem down to one day, starting from the
// carried-in relative state of charge.
func (p *Problem) CropDay(day int, rel []float64) DayProblem {
	per := p.PeriodsPerDay()
	lo, hi := day*per, (day+1)*per
	if hi > len(p.Times) {
		hi = len(p.Times)
	}
	return DayProblem{
		Problem:  p,
		Day:      p.Dates[day],
		Lo:       lo,
		Hi:       hi,
		Avail:    p.Avail.Slice(lo, hi, 0, len(p.Vehicles)),
		Use:      p.Use.Slice(lo, hi, 0, len(p.Vehicles)),
		Sessions: clipSessions(p.Sessions, lo, hi),
		Rel:      rel,
	}
}

// BuildProblem assembles the full scheduling problem from the persisted
// scenario inputs. Only routes with a positive electric energy draw
// participate; routes without an assigned vehicle slot are rejected.
func BuildProblem(scn model.Scenario, alloc model.Allocation, site model.Site,
	routes []model.Route, specs map[int64]model.VehicleSpec,
	prices map[time.Time]float64, loadKW map[time.Time]float64,
	planner config.Planner) (*Problem, error) {

	ev := make([]model.Route, 0, len(routes))
	for _, r := range routes {
		if r.EnergyKWh <= 0 {
			continue
		}
		if r.VehicleID == 0 {
			return nil, fmt.Errorf("schedule: route %d has no vehicle slot", r.ID)
		}
		ev = append(ev, r)
	}
	if len(ev) == 0 {
		return nil, nil
	}

	dates := ScheduleDates(ev, scn.HorizonDays)
	horizon := dates[len(dates)-1].AddDate(0, 0, 1)
	kept := ev[:0]
	for _, r := range ev {
		if r.Departure.Before(horizon) {
			kept = append(kept, r)
		}
	}
	ev = kept

	times := BuildTimes(dates, planner)
	vehicles := distinctVehicles(ev)

	avail := BuildAvailability(times, vehicles, ev, time.Duration(site.ConnectMin)*time.Minute)
	use := BuildEnergyUse(times, vehicles, ev)
	sessions, err := BuildSessions(avail)
	if err != nil {
		return nil, err
	}

	battery := make([]float64, len(vehicles))
	rateAC := make([]float64, len(vehicles))
	rateDC := make([]float64, len(vehicles))
	specOf := vehicleSpecs(ev, specs)
	for i, v := range vehicles {
		spec, ok := specOf[v]
		if !ok {
			return nil, fmt.Errorf("schedule: vehicle %d has no specification", v)
		}
		battery[i] = spec.BatteryKWh
		rateAC[i] = math.Min(spec.ChargeAC, alloc.ChargerAC)
		rateDC[i] = math.Min(spec.ChargeDC, alloc.ChargerDC)
	}

	prob := &Problem{
		Planner:         planner,
		Times:           times,
		Dates:           dates,
		Vehicles:        vehicles,
		Avail:           avail,
		Use:             use,
		Sessions:        sessions,
		NumFast:         alloc.NumFast,
		BatteryKWh:      battery,
		RateACKW:        rateAC,
		RateDCKW:        rateDC,
		RelChargeKWh:    make([]float64, len(vehicles)),
		NextRequiredKWh: make([]float64, len(vehicles)),
	}
	for i := range prob.NextRequiredKWh {
		prob.NextRequiredKWh[i] = -battery[i]
	}

	if scn.SmartCharging {
		prob.PriceKWh = forwardFill(times, prices, planner.DefaultPrice)
		prob.CapacityKW = netCapacity(times, site.CapacityKW, loadKW, planner.CapacityDerate)
		prob.ExtraCapacityKW = site.CapacityKW * planner.BreachMargin
	} else {
		prob.PriceKWh = fill(len(times), planner.DefaultPrice)
		prob.CapacityKW = fill(len(times), unconstrainedKW)
		prob.ExtraCapacityKW = unconstrainedKW
	}
	return prob, nil
}

// forwardFill aligns a sparse tariff series onto the grid, carrying the last
// published price forward and falling back to the default before the first.
func forwardFill(times []time.Time, prices map[time.Time]float64, def float64) []float64 {
	stamps := make([]time.Time, 0, len(prices))
	for ts := range prices {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	out := make([]float64, len(times))
	cur := def
	k := 0
	for i, ts := range times {
		for k < len(stamps) && !stamps[k].After(ts) {
			cur = prices[stamps[k]]
			k++
		}
		out[i] = cur
	}
	return out
}

// netCapacity derates the site feed and subtracts the ambient building load,
// clipping at zero so a heavily loaded period bars charging rather than
// forcing discharge.
func netCapacity(times []time.Time, siteKW float64, loadKW map[time.Time]float64, derate float64) []float64 {
	out := make([]float64, len(times))
	for i, ts := range times {
		c := siteKW*derate - loadKW[ts]
		if c < 0 {
			c = 0
		}
		out[i] = c
	}
	return out
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func distinctVehicles(routes []model.Route) []int {
	seen := make(map[int]struct{}, len(routes))
	out := make([]int, 0, len(routes))
	for _, r := range routes {
		if _, ok := seen[r.VehicleID]; ok {
			continue
		}
		seen[r.VehicleID] = struct{}{}
		out = append(out, r.VehicleID)
	}
	sort.Ints(out)
	return out
}

// vehicleSpecs maps each vehicle slot to the specification of its first route.
func vehicleSpecs(routes []model.Route, specs map[int64]model.VehicleSpec) map[int]model.VehicleSpec {
	out := make(map[int]model.VehicleSpec, len(specs))
	for _, r := range routes {
		if _, ok := out[r.VehicleID]; ok {
			continue
		}
		if s, ok := specs[r.SpecID]; ok {
			out[r.VehicleID] = s
		}
	}
	return out
}
