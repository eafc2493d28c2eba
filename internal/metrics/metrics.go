// Package metrics provides Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts scheduler ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratrunner_ticks_total",
		Help: "Total number of scheduler ticks",
	})

	// TickDuration tracks how long a full tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stratrunner_tick_duration_seconds",
		Help:    "Scheduler tick duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	// AssignmentRuns counts assignment runs by strategy type and result.
	AssignmentRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_assignment_runs_total",
		Help: "Assignment runs partitioned by strategy type and result",
	}, []string{"strategy_type", "result"})

	// RiskRejections counts orders rejected by the risk validator.
	RiskRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_risk_rejections_total",
		Help: "Orders rejected by the risk validator, by reason",
	}, []string{"reason"})

	// OrderAttempts counts exchange calls, including retries.
	OrderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_order_attempts_total",
		Help: "Order placement attempts by outcome kind",
	}, []string{"kind"})

	// OrderOutcomes counts terminal order outcomes.
	OrderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_order_outcomes_total",
		Help: "Terminal order outcomes by status",
	}, []string{"status"})

	// SettledAmount sums settled amounts by ledger kind.
	SettledAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_settled_amount_total",
		Help: "Absolute amount written to the ledger, by kind",
	}, []string{"kind"})

	// ClientCacheSize tracks cached exchange sessions.
	ClientCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stratrunner_client_cache_sessions",
		Help: "Number of cached exchange sessions",
	})

	// AggregatorRuns counts daily job runs by job and result.
	AggregatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratrunner_aggregator_runs_total",
		Help: "Daily aggregation runs by job and result",
	}, []string{"job", "result"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
