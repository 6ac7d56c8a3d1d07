package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	escalationRetries prometheus.Counter
	degradedDays      prometheus.Counter
	finalFleetSize    prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_escalation_retries_total",
			Help: "Number of fleet-size escalations across all allocated days",
		},
	)
	degraded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_degraded_days_total",
			Help: "Number of days accepted with an infeasible pairing",
		},
	)
	fleet := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocation_fleet_size",
			Help: "Final fleet size of the most recent allocation run",
		},
	)
	return retries, degraded, fleet
}

func init() {
	escalationRetries, degradedDays, finalFleetSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(escalationRetries, degradedDays, finalFleetSize)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	escalationRetries, degradedDays, finalFleetSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
