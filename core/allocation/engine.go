package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/logger"
	"github.com/evfleet/fleetplan/core/model"
)

// Store is the slice of the persistence layer the engine needs. Reads are
// one-shot at run start; assignments and the fleet size are written once per
// day. Store failures are fatal for the run.
type Store interface {
	Allocation(ctx context.Context, id int64) (model.Allocation, error)
	Site(ctx context.Context, id int64) (model.Site, error)
	VehicleSpec(ctx context.Context, id int64) (model.VehicleSpec, error)
	RoutesForDay(ctx context.Context, allocationID int64, day time.Time) ([]model.Route, error)
	SaveAssignments(ctx context.Context, allocationID int64, asn []model.Assignment) error
	UpdateFleetSize(ctx context.Context, allocationID int64, fleetSize int) error
}

// Engine drives the day loop of one allocation run.
type Engine struct {
	store Store
	log   logger.Logger
}

// NewEngine creates an allocation engine.
func NewEngine(store Store, log logger.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("allocation: nil store")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{store: store, log: log}, nil
}

// Run allocates every day in the allocation's date range. The fleet size
// carries forward between days: a day that needed more vehicles raises the
// starting point for the rest of the horizon.
func (e *Engine) Run(ctx context.Context, allocationID int64, p Params) (int, error) {
	alloc, err := e.store.Allocation(ctx, allocationID)
	if err != nil {
		return 0, fmt.Errorf("load allocation: %w", err)
	}
	if err := alloc.Validate(); err != nil {
		return 0, err
	}

	n := alloc.FleetSize
	if n < 1 {
		n = 1
	}
	for _, day := range alloc.Days() {
		routes, err := e.store.RoutesForDay(ctx, allocationID, day)
		if err != nil {
			return n, fmt.Errorf("load routes for %s: %w", day.Format("2006-01-02"), err)
		}
		if len(routes) == 0 {
			continue
		}
		res, err := AllocateDay(e.log, p, routes, n)
		if err != nil {
			return n, fmt.Errorf("allocate %s: %w", day.Format("2006-01-02"), err)
		}
		e.log.Infof("day %s: %d routes on %d vehicles (min cost %.2f, %d retries)",
			day.Format("2006-01-02"), len(routes), res.FleetSize, res.MinCost, res.Retries)
		if res.FleetSize > n {
			n = res.FleetSize
		}
		if err := e.store.SaveAssignments(ctx, allocationID, res.Assignments); err != nil {
			return n, fmt.Errorf("save assignments: %w", err)
		}
		if err := e.store.UpdateFleetSize(ctx, allocationID, n); err != nil {
			return n, fmt.Errorf("update fleet size: %w", err)
		}
	}
	finalFleetSize.Set(float64(n))
	return n, nil
}

// BuildParams assembles run parameters from the persisted records.
func BuildParams(ctx context.Context, store Store, alloc model.Allocation, planner config.Planner) (Params, error) {
	site, err := store.Site(ctx, alloc.SiteID)
	if err != nil {
		return Params{}, fmt.Errorf("load site: %w", err)
	}
	small, err := store.VehicleSpec(ctx, alloc.SmallSpecID)
	if err != nil {
		return Params{}, fmt.Errorf("load small spec: %w", err)
	}
	large, err := store.VehicleSpec(ctx, alloc.LargeSpecID)
	if err != nil {
		return Params{}, fmt.Errorf("load large spec: %w", err)
	}
	for _, s := range []model.VehicleSpec{small, large} {
		if err := s.Validate(); err != nil {
			return Params{}, err
		}
	}
	return Params{
		Planner:     planner,
		Specs:       model.SpecPair{small, large},
		Turnaround:  time.Duration(site.TurnaroundMin) * time.Minute,
		Connect:     time.Duration(site.ConnectMin) * time.Minute,
		ChargerAC:   alloc.ChargerAC,
		ChargerDC:   alloc.ChargerDC,
		CapVehicles: alloc.CapVehicles,
		MaxFleet:    planner.MaxFleetSize,
	}, nil
}
