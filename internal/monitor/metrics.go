package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics exposes routing activity to prometheus
type RouterMetrics struct {
	routingDecisions *prometheus.CounterVec
	venueExecutions  *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	executedVolume   prometheus.Counter
	costSavingsPct   prometheus.Histogram
}

// NewRouterMetrics registers router metrics with the given registerer
func NewRouterMetrics(reg prometheus.Registerer) *RouterMetrics {
	m := &RouterMetrics{
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sor",
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		venueExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sor",
			Name:      "venue_executions_total",
			Help:      "Venue execution legs by venue and result",
		}, []string{"venue", "result"}),
		executionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sor",
			Name:      "venue_execution_latency_seconds",
			Help:      "Per-leg execution latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"venue"}),
		executedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sor",
			Name:      "executed_volume_total",
			Help:      "Total executed quantity across all venues",
		}),
		costSavingsPct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sor",
			Name:      "split_cost_savings_pct",
			Help:      "Expected cost savings of executed split plans",
			Buckets:   prometheus.LinearBuckets(0, 0.5, 10),
		}),
	}

	reg.MustRegister(
		m.routingDecisions,
		m.venueExecutions,
		m.executionLatency,
		m.executedVolume,
		m.costSavingsPct,
	)

	return m
}

// ObserveDecision records the outcome of one routing request
func (m *RouterMetrics) ObserveDecision(strategy, outcome string) {
	m.routingDecisions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveLeg records a settled execution leg
func (m *RouterMetrics) ObserveLeg(venue string, success bool, latency time.Duration, executedQty float64) {
	result := "failure"
	if success {
		result = "success"
	}
	m.venueExecutions.WithLabelValues(venue, result).Inc()
	m.executionLatency.WithLabelValues(venue).Observe(latency.Seconds())
	if executedQty > 0 {
		m.executedVolume.Add(executedQty)
	}
}

// ObserveSavings records the expected improvement of an executed split
func (m *RouterMetrics) ObserveSavings(pct float64) {
	if pct > 0 {
		m.costSavingsPct.Observe(pct)
	}
}
