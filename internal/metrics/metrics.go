// Package metrics holds the Prometheus collectors for the scheduling engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all gmpsched collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Workflow metrics
	Transitions       *prometheus.CounterVec
	Candidates        *prometheus.CounterVec
	ValidationRuns    *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	BookingConflicts  prometheus.Counter
	DispatchPublished *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration.
type Config struct {
	Namespace string
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{Namespace: "gmpsched"}
}

// New creates and registers the collectors.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of perception and generation provider calls",
		},
		[]string{"provider", "status"},
	)

	m.ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	m.Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "workflow_transitions_total",
			Help:      "Total number of workflow state transitions",
		},
		[]string{"from", "to"},
	)

	m.Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "candidates_total",
			Help:      "Candidate plans by outcome of re-validation",
		},
		[]string{"outcome"},
	)

	m.ValidationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "validation_runs_total",
			Help:      "Total number of validation runs by result",
		},
		[]string{"result"},
	)

	m.ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_sessions",
			Help:      "Number of open scheduling sessions",
		},
	)

	m.BookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "booking_conflicts_total",
			Help:      "Reservations rejected because a window was held by another session",
		},
	)

	m.DispatchPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "dispatch_published_total",
			Help:      "Confirmed plans dispatched, by exporter and status",
		},
		[]string{"exporter", "status"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.ProviderCalls,
		m.ProviderDuration,
		m.Transitions,
		m.Candidates,
		m.ValidationRuns,
		m.ActiveSessions,
		m.BookingConflicts,
		m.DispatchPublished,
		m.CircuitBreakerState,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The Record methods are no-ops on a nil *Metrics.

// RecordProviderCall records one provider call.
func (m *Metrics) RecordProviderCall(provider string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCalls.WithLabelValues(provider, status).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTransition records a workflow state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordCandidate records a candidate outcome: accepted or rejected.
func (m *Metrics) RecordCandidate(outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(outcome).Inc()
}

// RecordValidation records a validation run.
func (m *Metrics) RecordValidation(valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "blocked"
	}
	m.ValidationRuns.WithLabelValues(result).Inc()
}

// RecordDispatch records an export of a confirmed plan.
func (m *Metrics) RecordDispatch(exporter string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DispatchPublished.WithLabelValues(exporter, status).Inc()
}

// SetCircuitBreakerState records a breaker state.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordBookingConflict counts a rejected reservation.
func (m *Metrics) RecordBookingConflict() {
	if m == nil {
		return
	}
	m.BookingConflicts.Inc()
}
