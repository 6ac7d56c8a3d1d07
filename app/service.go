// Package app wires the planning engines to their infrastructure.
package app

import (
	"context"
	"fmt"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/allocation"
	"github.com/evfleet/fleetplan/core/model"
	"github.com/evfleet/fleetplan/core/schedule"
	"github.com/evfleet/fleetplan/infra/logger"
	"github.com/evfleet/fleetplan/infra/metrics"
	"github.com/evfleet/fleetplan/infra/store"
)

// Service holds the store and both engines for the lifetime of a run.
type Service struct {
	cfg   *config.Config
	store *store.SQLite
	log   logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	log := logger.NewWithOptions("service", cfg.Logging.Console, cfg.Logging.Level)
	return &Service{cfg: cfg, store: st, log: log}, nil
}

// Store exposes the persistence layer for seeding and inspection.
func (s *Service) Store() *store.SQLite { return s.store }

// StartMetrics exposes the Prometheus endpoint until the context is
// cancelled. It is a no-op when metrics are disabled.
func (s *Service) StartMetrics(ctx context.Context) {
	if !s.cfg.Metrics.Enabled {
		return
	}
	go func() {
		if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.Port, s.log); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}()
}

// Allocate runs the assignment engine over one allocation and returns the
// settled fleet size.
func (s *Service) Allocate(ctx context.Context, allocationID int64) (int, error) {
	engine, err := allocation.NewEngine(s.store, s.log)
	if err != nil {
		return 0, err
	}
	alloc, err := s.store.Allocation(ctx, allocationID)
	if err != nil {
		return 0, err
	}
	params, err := allocation.BuildParams(ctx, s.store, alloc, s.cfg.Planner)
	if err != nil {
		return 0, err
	}
	return engine.Run(ctx, allocationID, params)
}

// Schedule runs the charge scheduler over one scenario.
func (s *Service) Schedule(ctx context.Context, scenarioID int64) (model.ScenarioSummary, error) {
	orch := schedule.NewOrchestrator(s.store, s.cfg.Planner, s.log)
	return orch.Run(ctx, scenarioID)
}

// Close releases resources held by the service.
func (s *Service) Close() error { return s.store.Close() }
