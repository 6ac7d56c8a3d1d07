package schedule

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/logger"
	"github.com/evfleet/fleetplan/core/model"
)

// Orchestrator runs a scenario end to end: it loads the persisted inputs,
// optimizes each day under the solve deadline, carries the end-of-day state
// of charge forward and persists the profile and the run summary.
type Orchestrator struct {
	store   Store
	opt     *Optimizer
	planner config.Planner
	log     logger.Logger
}

func NewOrchestrator(store Store, planner config.Planner, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Orchestrator{
		store:   store,
		opt:     NewOptimizer(log),
		planner: planner,
		log:     log,
	}
}

// Run schedules one scenario. Store failures and corrupted availability data
// are fatal and flip the scenario to failed; optimizer trouble never is,
// because the tier chain always lands on a profile.
func (o *Orchestrator) Run(ctx context.Context, scenarioID int64) (model.ScenarioSummary, error) {
	summary := model.ScenarioSummary{ScenarioID: scenarioID, Status: model.ScenarioFailed}

	scn, err := o.store.Scenario(ctx, scenarioID)
	if err != nil {
		return summary, fmt.Errorf("load scenario %d: %w", scenarioID, err)
	}
	if err := o.store.SetScenarioStatus(ctx, scenarioID, model.ScenarioRunning); err != nil {
		return summary, fmt.Errorf("mark scenario %d running: %w", scenarioID, err)
	}

	summary, err = o.run(ctx, scn)
	if err != nil {
		if serr := o.store.SetScenarioStatus(ctx, scenarioID, model.ScenarioFailed); serr != nil {
			o.log.Errorf("scenario %d: recording failure: %v", scenarioID, serr)
		}
		return summary, err
	}

	summary.Status = model.ScenarioComplete
	if err := o.store.SaveScenarioSummary(ctx, summary); err != nil {
		return summary, fmt.Errorf("save summary for scenario %d: %w", scenarioID, err)
	}
	if err := o.store.SetScenarioStatus(ctx, scenarioID, model.ScenarioComplete); err != nil {
		return summary, fmt.Errorf("mark scenario %d complete: %w", scenarioID, err)
	}
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, scn model.Scenario) (model.ScenarioSummary, error) {
	summary := model.ScenarioSummary{ScenarioID: scn.ID, MinSoCKWh: math.Inf(1), MaxSoCKWh: math.Inf(-1)}

	prob, excessCharge, err := o.loadProblem(ctx, scn)
	if err != nil {
		return summary, err
	}
	if prob == nil {
		o.log.Infof("scenario %d: no electric routes to schedule", scn.ID)
		summary.MinSoCKWh, summary.MaxSoCKWh = 0, 0
		return summary, nil
	}

	o.log.Infof("scheduling scenario %d: %d days, %d vehicles, smart=%v",
		scn.ID, len(prob.Dates), len(prob.Vehicles), scn.SmartCharging)

	per := prob.PeriodsPerDay()
	buf := NewDayResult(per, len(prob.Vehicles))
	rel := make([]float64, len(prob.Vehicles))
	copy(rel, prob.RelChargeKWh)

	for d := range prob.Dates {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("scenario %d cancelled: %w", scn.ID, err)
		}
		// A timed-out solve leaves its goroutine reading the day's inputs,
		// so each day gets its own copy of the carried charge.
		day := prob.CropDay(d, append([]float64(nil), rel...))

		start := time.Now()
		res := o.optimizeWithDeadline(ctx, day, buf)
		observeSolve(res.Tier, time.Since(start))

		o.auditDay(day, res, excessCharge, &summary)
		if err := o.persistDay(ctx, scn.ID, day, res); err != nil {
			return summary, err
		}

		copy(rel, res.FinalRel)
		if res == buf {
			continue
		}
		// The deadline abandoned buf to the stale solver goroutine.
		buf = NewDayResult(per, len(prob.Vehicles))
	}

	if math.IsInf(summary.MinSoCKWh, 1) {
		summary.MinSoCKWh, summary.MaxSoCKWh = 0, 0
	}
	return summary, nil
}

// loadProblem gathers the scenario's persisted inputs. A nil problem with a
// nil error means the allocation has no electric routes.
func (o *Orchestrator) loadProblem(ctx context.Context, scn model.Scenario) (*Problem, float64, error) {
	alloc, err := o.store.Allocation(ctx, scn.AllocationID)
	if err != nil {
		return nil, 0, fmt.Errorf("load allocation %d: %w", scn.AllocationID, err)
	}
	site, err := o.store.Site(ctx, alloc.SiteID)
	if err != nil {
		return nil, 0, fmt.Errorf("load site %d: %w", alloc.SiteID, err)
	}
	routes, err := o.store.AssignedRoutes(ctx, alloc.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("load routes for allocation %d: %w", alloc.ID, err)
	}

	specs := make(map[int64]model.VehicleSpec, 2)
	for _, id := range []int64{alloc.SmallSpecID, alloc.LargeSpecID} {
		spec, err := o.store.VehicleSpec(ctx, id)
		if err != nil {
			return nil, 0, fmt.Errorf("load vehicle spec %d: %w", id, err)
		}
		specs[id] = spec
	}

	prices := map[time.Time]float64{}
	loadKW := map[time.Time]float64{}
	excessCharge := 0.0
	if scn.SmartCharging && site.DistributionID >= 0 {
		if prices, err = o.store.Prices(ctx, site.DistributionID); err != nil {
			return nil, 0, fmt.Errorf("load tariff %d: %w", site.DistributionID, err)
		}
		if loadKW, err = o.store.SiteLoad(ctx, site.ID); err != nil {
			return nil, 0, fmt.Errorf("load site load %d: %w", site.ID, err)
		}
		if excessCharge, err = o.store.ExcessCharge(ctx, site.DistributionID); err != nil {
			return nil, 0, fmt.Errorf("load excess charge %d: %w", site.DistributionID, err)
		}
	}

	prob, err := BuildProblem(scn, alloc, site, routes, specs, prices, loadKW, o.planner)
	if err != nil {
		return nil, 0, err
	}
	return prob, excessCharge, nil
}

// auditDay folds one day's outcome and audit counters into the summary.
func (o *Orchestrator) auditDay(day DayProblem, res *DayResult, excessCharge float64, summary *model.ScenarioSummary) {
	switch res.Tier {
	case TierBreach:
		summary.BreachDays++
	case TierMagic:
		summary.MagicDays++
	}
	if res.TimedOut {
		summary.TimeoutDays++
	}
	summary.BreachPeriods += countBreachPeriods(day, res)
	summary.ExcessCost += excessCost(day, res, excessCharge)

	if v := countFastViolations(day, res); v > 0 {
		qaFastViolations.Add(float64(v))
		o.log.Warnf("day %s: %d periods exceed the fast charger count", day.Day.Format("2006-01-02"), v)
	}
	if v := countSoCViolations(day, res); v > 0 {
		qaSoCViolations.Add(float64(v))
		o.log.Warnf("day %s: %d state-of-charge deltas lack delivered energy", day.Day.Format("2006-01-02"), v)
	}

	P, N := day.Periods(), len(day.Problem.Vehicles)
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			summary.OutputKWh += res.Output.At(i, j)
			soc := res.SoC.At(i, j)
			if soc < summary.MinSoCKWh {
				summary.MinSoCKWh = soc
			}
			if soc > summary.MaxSoCKWh {
				summary.MaxSoCKWh = soc
			}
		}
	}
}

// persistDay writes one day of the profile. Power is the average draw over
// the period; the trace is persisted as absolute kWh.
func (o *Orchestrator) persistDay(ctx context.Context, scenarioID int64, day DayProblem, res *DayResult) error {
	p := day.Problem
	h := p.Planner.PeriodHours()
	P, N := day.Periods(), len(p.Vehicles)
	rows := make([]model.ScheduleRow, 0, P*N)
	for i := 0; i < P; i++ {
		for j := 0; j < N; j++ {
			rows = append(rows, model.ScheduleRow{
				ScenarioID: scenarioID,
				VehicleID:  p.Vehicles[j],
				Period:     p.Times[day.Lo+i],
				PowerKW:    res.Output.At(i, j) / h,
				SoCKWh:     res.SoC.At(i, j),
			})
		}
	}
	if err := o.store.SaveSchedule(ctx, rows); err != nil {
		return fmt.Errorf("save schedule for %s: %w", day.Day.Format("2006-01-02"), err)
	}
	return nil
}
