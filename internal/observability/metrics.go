package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tracker"

// Metrics holds the collectors for credential verification, guard decisions
// and the managed-auth session lookup. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	verifications  *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	resolverErrors *prometheus.CounterVec
	sessionLookups *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "verifications_total",
			Help:      "Credential verification outcomes by origin.",
		}, []string{"origin", "outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization guard decisions by requirement kind.",
		}, []string{"kind", "outcome"}),
		resolverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "resolver_errors_total",
			Help:      "Permission store failures that resolved to deny.",
		}, []string{"operation"}),
		sessionLookups: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_lookup_duration_seconds",
			Help:      "Latency of managed-auth session lookups.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.verifications,
		m.decisions,
		m.resolverErrors,
		m.sessionLookups,
		m.breakerState,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordVerification counts a verification attempt. outcome is one of
// "success", "missing", "invalid" or "cancelled"; origin is empty when no credential path succeeded.
func (m *Metrics) RecordVerification(origin, outcome string) {
	if m == nil {
		return
	}
	if origin == "" {
		origin = "none"
	}
	m.verifications.WithLabelValues(origin, outcome).Inc()
}

// RecordDecision counts a guard decision
func (m *Metrics) RecordDecision(kind string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.decisions.WithLabelValues(kind, outcome).Inc()
}

// RecordResolverError counts a store failure that was turned into a deny
func (m *Metrics) RecordResolverError(operation string) {
	if m == nil {
		return
	}
	m.resolverErrors.WithLabelValues(operation).Inc()
}

// ObserveSessionLookup records the latency of one session lookup
func (m *Metrics) ObserveSessionLookup(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sessionLookups.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SetBreakerState publishes a breaker state transition
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}
