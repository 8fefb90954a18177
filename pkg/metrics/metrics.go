// Package metrics exposes Prometheus instrumentation for the client core.
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_pulse"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	toasts          *prometheus.CounterVec
	authTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		taskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "runs_total",
				Help:      "Task completions by task name and outcome.",
			},
			[]string{"task", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "duration_seconds",
				Help:      "Time from task start to completion being applied.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"task"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Classified errors by kind.",
			},
			[]string{"kind"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Result cache lookups by result (hit, miss, bypass).",
			},
			[]string{"result"},
		),
		toasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toasts_total",
				Help:      "Toasts shown by kind.",
			},
			[]string{"kind"},
		),
		authTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "transitions_total",
				Help:      "Auth status transitions by target status.",
			},
			[]string{"to"},
		),
	}
	m.registry.MustRegister(
		m.taskRuns,
		m.taskDuration,
		m.errors,
		m.cacheLookups,
		m.toasts,
		m.authTransitions,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TaskFinished records a task completion.
func (m *Metrics) TaskFinished(task, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, outcome).Inc()
	m.taskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ErrorClassified records a classified error.
func (m *Metrics) ErrorClassified(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// CacheLookup records a cache lookup result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ToastShown records a toast.
func (m *Metrics) ToastShown(kind string) {
	if m == nil {
		return
	}
	m.toasts.WithLabelValues(kind).Inc()
}

// AuthTransition records an auth status change.
func (m *Metrics) AuthTransition(to string) {
	if m == nil {
		return
	}
	m.authTransitions.WithLabelValues(to).Inc()
}
