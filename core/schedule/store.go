package schedule

import (
	"context"
	"time"

	"github.com/evfleet/fleetplan/core/model"
)

// Store is the persistence surface of the scheduling engine.
type Store interface {
	Scenario(ctx context.Context, id int64) (model.Scenario, error)
	Allocation(ctx context.Context, id int64) (model.Allocation, error)
	Site(ctx context.Context, id int64) (model.Site, error)
	VehicleSpec(ctx context.Context, id int64) (model.VehicleSpec, error)
	// AssignedRoutes returns the allocation's routes with their vehicle
	// slots filled in by the assignment engine.
	AssignedRoutes(ctx context.Context, allocationID int64) ([]model.Route, error)
	// Prices returns the published tariff points of a distribution series;
	// sparse series are forward-filled onto the grid by the caller.
	Prices(ctx context.Context, distributionID int64) (map[time.Time]float64, error)
	// SiteLoad returns the ambient building draw in kW per grid timestamp.
	SiteLoad(ctx context.Context, siteID int64) (map[time.Time]float64, error)
	// ExcessCharge returns the distributor's exceeded-capacity price per kVA.
	ExcessCharge(ctx context.Context, distributionID int64) (float64, error)

	SetScenarioStatus(ctx context.Context, id int64, status model.ScenarioStatus) error
	SaveSchedule(ctx context.Context, rows []model.ScheduleRow) error
	SaveScenarioSummary(ctx context.Context, summary model.ScenarioSummary) error
}
