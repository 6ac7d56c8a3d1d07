// Package schedule computes time-resolved charging power profiles for an
// allocated fleet.
//
// The horizon is discretized into a uniform grid shared by the availability
// matrix, the energy-use matrix and the price and capacity vectors, all
// indexed [period, vehicle]. Each day is optimized in isolation through an
// escalating chain of tiers: a site-constrained program first, a
// capacity-breach relaxation second, and a closed-form fallback that always
// succeeds last. The orchestrator runs the days sequentially, carrying each
// day's end-of-day state of charge into the next.
package schedule
