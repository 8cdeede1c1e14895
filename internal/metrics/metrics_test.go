package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRegistryCall("dpe", "ok", 120*time.Millisecond)
	m.ObserveRegistryCall("dpe", "timeout", 8*time.Second)
	m.ObserveRegistryCall("dvf", "ok", 50*time.Millisecond)
	m.IncSessionState("DRAFT")
	m.IncDiagnostics()
	m.AddSwept(3)
	m.AddSwept(0)
	m.IncGeocodeCache(true)
	m.SetCircuitState("dpe", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistryOutcome.WithLabelValues("dpe", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("DRAFT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCacheHits.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("dpe")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RegistryLatency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRegistryCall("ban", "ok", time.Second)
		m.IncSessionState("READY")
		m.ObserveAcquire(time.Second)
		m.IncDiagnostics()
		m.AddSwept(1)
		m.AddCondoRows(10)
		m.IncGeocodeCache(false)
		m.SetCircuitState("ban", 0)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
