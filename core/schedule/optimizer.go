package schedule

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/evfleet/fleetplan/core/logger"
	"github.com/evfleet/fleetplan/internal/lpsolve"
)

// Tier names the escalation level that produced a day's profile.
type Tier int

const (
	// TierNormal is the fully constrained program.
	TierNormal Tier = iota
	// TierBreach relaxes the site capacity with emergency headroom and
	// instead pins each vehicle to its next-day energy floor.
	TierBreach
	// TierMagic is the closed-form fallback that ignores the site entirely.
	TierMagic
)

func (t Tier) String() string {
	switch t {
	case TierNormal:
		return "normal"
	case TierBreach:
		return "breach"
	case TierMagic:
		return "magic"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// DayResult holds one day's charging profile. Buffers are preallocated by the
// orchestrator and sized to the day window so tier code never allocates under
// the solve deadline.
type DayResult struct {
	Tier     Tier
	TimedOut bool

	// Output is the delivered energy in kWh per [period, vehicle].
	Output *mat.Dense
	// SoC is the absolute state of charge in kWh per [period, vehicle],
	// taken at the end of each period.
	SoC *mat.Dense
	// FinalRel is the end-of-day state of charge relative to a full
	// battery, one non-positive value per vehicle.
	FinalRel []float64
}

// NewDayResult sizes a result buffer for a day window.
func NewDayResult(periods, vehicles int) *DayResult {
	return &DayResult{
		Output:   mat.NewDense(periods, vehicles, nil),
		SoC:      mat.NewDense(periods, vehicles, nil),
		FinalRel: make([]float64, vehicles),
	}
}

func (r *DayResult) reset() {
	r.Tier = TierNormal
	r.TimedOut = false
	r.Output.Zero()
	r.SoC.Zero()
	for i := range r.FinalRel {
		r.FinalRel[i] = 0
	}
}

// Optimizer solves one day at a time, escalating through the tiers until a
// profile exists. Magic always succeeds, so OptimizeDay never fails.
type Optimizer struct {
	log logger.Logger
}

func NewOptimizer(log logger.Logger) *Optimizer {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Optimizer{log: log}
}

// OptimizeDay fills res with the cheapest feasible profile for the day.
func (o *Optimizer) OptimizeDay(day DayProblem, res *DayResult) {
	res.reset()
	dcSel := selectFastSessions(day)

	if err := o.solveTier(day, dcSel, false, res); err == nil {
		res.Tier = TierNormal
		return
	} else if !errors.Is(err, lpsolve.ErrInfeasible) {
		o.log.Warnf("day %s: normal tier failed: %v", day.Day.Format("2006-01-02"), err)
	}

	if err := o.solveTier(day, dcSel, true, res); err == nil {
		res.Tier = TierBreach
		o.log.Infof("day %s: scheduled with capacity breach headroom", day.Day.Format("2006-01-02"))
		return
	} else if !errors.Is(err, lpsolve.ErrInfeasible) {
		o.log.Warnf("day %s: breach tier failed: %v", day.Day.Format("2006-01-02"), err)
	}

	solveMagic(day, res)
	res.Tier = TierMagic
	o.log.Warnf("day %s: fell back to magic charging", day.Day.Format("2006-01-02"))
}

// solveTier builds and solves the day program. The variables are delivered
// energies x[period*N+vehicle] in kWh. Cumulative state of charge stays in
// [-battery, 0] relative to full; per-period rates respect availability and
// the charger tier; the site rows cap total draw. Breach mode widens the site
// rows by the emergency headroom and adds one end-of-day energy floor per
// vehicle.
func (o *Optimizer) solveTier(day DayProblem, dcSel []bool, breach bool, res *DayResult) error {
	p := day.Problem
	pl := p.Planner
	P, N := day.Periods(), len(p.Vehicles)
	nv := P * N
	eff := pl.ChargerEfficiency
	h := pl.PeriodHours()

	c := make([]float64, nv)
	for i := 0; i < P; i++ {
		price := p.PriceKWh[day.Lo+i]
		for j := 0; j < N; j++ {
			c[i*N+j] = price - pl.ChargeBonus + float64(i)*pl.TimeWeight
		}
	}

	// Running consumption per vehicle up to and including each period.
	cumUse := make([]float64, nv)
	useSum := make([]float64, N)
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			useSum[j] += day.Use.At(i, j)
			cumUse[i*N+j] = useSum[j]
		}
	}

	rows := 4*nv + P
	if breach {
		rows += N
	}
	g := mat.NewDense(rows, nv, nil)
	hvec := make([]float64, rows)
	row := 0

	// Cumulative charge never lifts the pack above full.
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			for k := 0; k <= i; k++ {
				g.Set(row, k*N+j, eff)
			}
			hvec[row] = -cumUse[i*N+j] - day.Rel[j]
			row++
		}
	}
	// Nor below empty.
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			for k := 0; k <= i; k++ {
				g.Set(row, k*N+j, -eff)
			}
			hvec[row] = cumUse[i*N+j] + day.Rel[j] + p.BatteryKWh[j]
			row++
		}
	}
	// Per-period rate limits by availability and charger tier.
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			g.Set(row, i*N+j, 1)
			if day.Avail.At(i, j) > 0 {
				rate := p.RateACKW[j]
				if dcSel[i*N+j] {
					rate = p.RateDCKW[j]
				}
				hvec[row] = rate * h
			}
			row++
		}
	}
	// Nonnegative delivery.
	for v := 0; v < nv; v++ {
		g.Set(row, v, -1)
		row++
	}
	// Site capacity per period.
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			g.Set(row, i*N+j, 1)
		}
		cap := p.CapacityKW[day.Lo+i]
		if breach {
			cap += p.ExtraCapacityKW
		}
		hvec[row] = cap * h
		row++
	}
	if breach {
		for j := 0; j < N; j++ {
			for i := 0; i < P; i++ {
				g.Set(row, i*N+j, -eff)
			}
			hvec[row] = useSum[j] + day.Rel[j] + p.BatteryKWh[j] + p.NextRequiredKWh[j]
			row++
		}
	}

	x, err := solveLP(c, g, hvec, nil, nil)
	if err != nil {
		return err
	}

	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			e := x[i*N+j]
			if e < 1e-9 {
				e = 0
			}
			res.Output.Set(i, j, e)
		}
	}
	deriveSoC(day, res)
	return nil
}

// solveLP is swapped out by tests.
var solveLP = lpsolve.Solve

// deriveSoC integrates the profile into the absolute state-of-charge trace
// and the end-of-day relative charge.
func deriveSoC(day DayProblem, res *DayResult) {
	p := day.Problem
	eff := p.Planner.ChargerEfficiency
	P, N := day.Periods(), len(p.Vehicles)
	for j := 0; j < N; j++ {
		rel := day.Rel[j]
		for i := 0; i < P; i++ {
			rel += eff*res.Output.At(i, j) + day.Use.At(i, j)
			res.SoC.Set(i, j, p.BatteryKWh[j]+rel)
		}
		if rel > 0 {
			rel = 0
		}
		res.FinalRel[j] = rel
	}
}

// selectFastSessions fixes the fast-charger placement before the continuous
// solve. Sessions are ranked by how far slow charging alone would leave their
// vehicle short of a full pack, and greedily admitted while no period exceeds
// the fast-charger count. The returned mask is [period*N+vehicle].
func selectFastSessions(day DayProblem) []bool {
	p := day.Problem
	P, N := day.Periods(), len(p.Vehicles)
	sel := make([]bool, P*N)
	if p.NumFast <= 0 {
		return sel
	}
	eff := p.Planner.ChargerEfficiency
	h := p.Planner.PeriodHours()

	need := make([]float64, N)
	acKWh := make([]float64, N)
	for j := 0; j < N; j++ {
		need[j] = -day.Rel[j]
	}
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			need[j] -= day.Use.At(i, j)
			if day.Avail.At(i, j) > 0 {
				acKWh[j] += eff * p.RateACKW[j] * h
			}
		}
	}

	type ranked struct {
		s         Session
		shortfall float64
	}
	cands := make([]ranked, 0, len(day.Sessions))
	for _, s := range day.Sessions {
		short := need[s.Vehicle] - acKWh[s.Vehicle]
		if short > 0 {
			cands = append(cands, ranked{s: s, shortfall: short})
		}
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].shortfall != cands[b].shortfall {
			return cands[a].shortfall > cands[b].shortfall
		}
		return cands[a].s.Start < cands[b].s.Start
	})

	count := make([]int, P)
	for _, c := range cands {
		ok := true
		for i := c.s.Start; i < c.s.End; i++ {
			if count[i] >= p.NumFast {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for i := c.s.Start; i < c.s.End; i++ {
			count[i]++
			sel[i*N+c.s.Vehicle] = true
		}
	}
	return sel
}
