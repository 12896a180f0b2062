// Package metrics exposes Prometheus instrumentation for the rebalancer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CyclesTotal counts completed rebalancing cycles by outcome.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_cycles_total",
			Help: "Completed rebalancing cycles by result.",
		},
		[]string{"result"},
	)

	// ActionsTotal counts executed plan actions by type and outcome.
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_actions_total",
			Help: "Executed rebalancing actions by type and result.",
		},
		[]string{"type", "result"},
	)

	// PortfolioValue is the most recent total portfolio value in whole
	// reference units.
	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rebalancer_portfolio_value",
			Help: "Total portfolio value in reference units at last valuation.",
		},
	)

	// CycleDuration observes wall-clock duration of full cycles.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rebalancer_cycle_duration_seconds",
			Help:    "Duration of rebalancing cycles.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, ActionsTotal, PortfolioValue, CycleDuration)
}

// ObserveCycle records the outcome and duration of one cycle.
func ObserveCycle(result string, seconds float64) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(seconds)
}

// ObserveAction records the outcome of one executed action.
func ObserveAction(actionType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	ActionsTotal.WithLabelValues(actionType, result).Inc()
}
