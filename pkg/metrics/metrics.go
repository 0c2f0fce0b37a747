// Package metrics exposes Prometheus collectors for automation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flowbase"

// Metrics holds the engine collectors. It implements actions.Observer.
type Metrics struct {
	registry *prometheus.Registry

	automationRuns     *prometheus.CounterVec
	automationDuration *prometheus.HistogramVec
	actionExecutions   *prometheus.CounterVec
	actionDuration     *prometheus.HistogramVec
	batches            prometheus.Counter
	batchSize          prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		automationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "automation",
				Name:      "runs_total",
				Help:      "Automation evaluations by terminal status.",
			},
			[]string{"status"},
		),
		automationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "automation",
				Name:      "run_duration_seconds",
				Help:      "Duration of automation evaluations.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"status"},
		),
		actionExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "executions_total",
				Help:      "Executed actions by type and outcome.",
			},
			[]string{"type", "success"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "execution_duration_seconds",
				Help:      "Duration of action executions.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"type"},
		),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Completed batches.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "automations",
			Help:      "Automations considered per batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.automationRuns,
		m.automationDuration,
		m.actionExecutions,
		m.actionDuration,
		m.batches,
		m.batchSize,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AutomationRun(status models.RunStatus, duration time.Duration) {
	m.automationRuns.WithLabelValues(string(status)).Inc()
	m.automationDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (m *Metrics) ActionExecuted(actionType models.ActionType, success bool, duration time.Duration) {
	outcome := "false"
	if success {
		outcome = "true"
	}

	m.actionExecutions.WithLabelValues(string(actionType), outcome).Inc()
	m.actionDuration.WithLabelValues(string(actionType)).Observe(duration.Seconds())
}

func (m *Metrics) BatchCompleted(summary models.RunSummary) {
	m.batches.Inc()
	m.batchSize.Observe(float64(summary.RunCount))
}
