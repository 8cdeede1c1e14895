// Package metrics exposes Prometheus instrumentation for registry calls,
// session transitions and diagnostics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. A nil *Metrics is a valid no-op.
type Metrics struct {
	RegistryLatency  *prometheus.HistogramVec
	RegistryOutcome  *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec
	SessionState     *prometheus.CounterVec
	AcquireLatency   prometheus.Histogram
	Diagnostics      prometheus.Counter
	SessionsSwept    prometheus.Counter
	CondoRowsLoaded  prometheus.Counter
	GeocodeCacheHits *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_registry_call_duration_seconds",
			Help:    "Duration of registry calls including retries, by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 10},
		}, []string{"source"}),

		RegistryOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_registry_calls_total",
			Help: "Registry calls by source and status (ok, empty, failed, timeout, circuit_open)",
		}, []string{"source", "status"}),

		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audit_registry_circuit_state",
			Help: "Circuit breaker state by source (0 closed, 1 open, 2 half-open)",
		}, []string{"source"}),

		SessionState: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_session_transitions_total",
			Help: "Audit sessions entering each state",
		}, []string{"state"}),

		AcquireLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_acquire_duration_seconds",
			Help:    "Duration of a full registry acquisition",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 10, 12},
		}),

		Diagnostics: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_diagnostics_computed_total",
			Help: "Diagnostics computed",
		}),

		SessionsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper",
		}),

		CondoRowsLoaded: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_condo_rows_loaded_total",
			Help: "Condominium registry rows imported",
		}),

		GeocodeCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_geocode_cache_lookups_total",
			Help: "Geocode cache lookups by result (hit, miss)",
		}, []string{"result"}),
	}
}

// ObserveRegistryCall records one guarded registry call.
func (m *Metrics) ObserveRegistryCall(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryLatency.WithLabelValues(source).Observe(d.Seconds())
	m.RegistryOutcome.WithLabelValues(source, status).Inc()
}

// SetCircuitState records the breaker state for a source.
func (m *Metrics) SetCircuitState(source string, state int) {
	if m != nil {
		m.CircuitState.WithLabelValues(source).Set(float64(state))
	}
}

// IncSessionState counts a session entering state.
func (m *Metrics) IncSessionState(state string) {
	if m != nil {
		m.SessionState.WithLabelValues(state).Inc()
	}
}

// ObserveAcquire records the duration of a full acquisition.
func (m *Metrics) ObserveAcquire(d time.Duration) {
	if m != nil {
		m.AcquireLatency.Observe(d.Seconds())
	}
}

// IncDiagnostics counts a computed diagnostic.
func (m *Metrics) IncDiagnostics() {
	if m != nil {
		m.Diagnostics.Inc()
	}
}

// AddSwept counts sessions removed by the sweeper.
func (m *Metrics) AddSwept(n int) {
	if m != nil && n > 0 {
		m.SessionsSwept.Add(float64(n))
	}
}

// AddCondoRows counts imported registry rows.
func (m *Metrics) AddCondoRows(n int64) {
	if m != nil && n > 0 {
		m.CondoRowsLoaded.Add(float64(n))
	}
}

// IncGeocodeCache counts a cache lookup.
func (m *Metrics) IncGeocodeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GeocodeCacheHits.WithLabelValues(result).Inc()
}
