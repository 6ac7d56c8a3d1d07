package schedule

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dayTiers         *prometheus.CounterVec
	solveDuration    prometheus.Histogram
	qaFastViolations prometheus.Counter
	qaSoCViolations  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter, prometheus.Counter) {
	tiers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_day_tier_total",
			Help: "Number of scheduled days by optimization tier",
		},
		[]string{"tier"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_day_solve_seconds",
			Help:    "Wall time of one day's optimization",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)
	fast := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_qa_fast_charger_violations_total",
			Help: "Periods where more vehicles charge fast than the site has fast posts",
		},
	)
	soc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_qa_soc_violations_total",
			Help: "Periods where the state-of-charge gain exceeds the delivered energy",
		},
	)
	return tiers, duration, fast, soc
}

func init() {
	dayTiers, solveDuration, qaFastViolations, qaSoCViolations = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduling metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dayTiers, solveDuration, qaFastViolations, qaSoCViolations)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dayTiers, solveDuration, qaFastViolations, qaSoCViolations = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeSolve(tier Tier, elapsed time.Duration) {
	dayTiers.WithLabelValues(tier.String()).Inc()
	solveDuration.Observe(elapsed.Seconds())
}
