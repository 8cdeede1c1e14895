// Package acquisition runs the Audit Flash lifecycle: address normalization,
// concurrent registry fan-out, reconciliation into a provenance-tagged
// record, manual completion and consumption by the diagnostic engine.
package acquisition

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/condo"
	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/metrics"
	"github.com/sells-group/audit-flash/internal/resilience"
	"github.com/sells-group/audit-flash/internal/store"
	"github.com/sells-group/audit-flash/pkg/cadastre"
	"github.com/sells-group/audit-flash/pkg/dpe"
	"github.com/sells-group/audit-flash/pkg/dvf"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

// Errors returned to callers. Registry failures other than address
// normalization never surface; they become missing fields.
var (
	ErrAddressNotFound    = eris.New("acquisition: address not found")
	ErrAddressUnavailable = eris.New("acquisition: address service unavailable")
	ErrSessionExpired     = eris.New("acquisition: session expired")
	ErrSessionNotReady    = eris.New("acquisition: session not ready")
	ErrConcurrentUpdate   = eris.New("acquisition: concurrent update")
)

// Registry names used in source reports, breakers and metrics.
const (
	SourceBAN      = "ban"
	SourceCadastre = "cadastre"
	SourceCondo    = "rnic"
	SourceEnergy   = "dpe"
	SourceMarket   = "dvf"
)

// Sources are the registry clients. Geocoder is required; a nil secondary
// client is reported as skipped.
type Sources struct {
	Geocoder geocode.Client
	Cadastre cadastre.Client
	Condos   condo.Registry
	Energy   dpe.Client
	Market   dvf.Client
}

// Config bounds registry calls and session lifetime.
type Config struct {
	// CallTimeout applies to each attempt against one registry.
	CallTimeout time.Duration
	// Deadline bounds the whole fan-out; late answers are dropped.
	Deadline   time.Duration
	Retry      resilience.RetryConfig
	Circuit    resilience.CircuitBreakerConfig
	SessionTTL time.Duration
}

// DefaultConfig returns 8s per call, a 10s fan-out deadline, two retries and
// a 24h idle session lifetime.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 8 * time.Second,
		Deadline:    10 * time.Second,
		Retry:       resilience.DefaultRetryConfig(),
		Circuit:     resilience.DefaultCircuitBreakerConfig(),
		SessionTTL:  24 * time.Hour,
	}
}

// Orchestrator owns the session lifecycle. It is safe for concurrent use.
type Orchestrator struct {
	src      Sources
	store    store.Store
	engine   *engine.Engine
	cfg      Config
	metrics  *metrics.Metrics
	breakers *resilience.ServiceBreakers
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default Config. Zero durations keep the defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		d := DefaultConfig()
		if cfg.CallTimeout <= 0 {
			cfg.CallTimeout = d.CallTimeout
		}
		if cfg.Deadline <= 0 {
			cfg.Deadline = d.Deadline
		}
		if cfg.SessionTTL <= 0 {
			cfg.SessionTTL = d.SessionTTL
		}
		if cfg.Retry.MaxAttempts <= 0 {
			cfg.Retry = d.Retry
		}
		o.cfg = cfg
	}
}

// WithMetrics records registry calls and session transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDs overrides the session and diagnostic id generator.
func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// New creates an Orchestrator over the given registries and store.
func New(src Sources, st store.Store, eng *engine.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		src:    src,
		store:  st,
		engine: eng,
		cfg:    DefaultConfig(),
		locks:  newKeyedMutex(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	cb := o.cfg.Circuit
	cb.ShouldTrip = tripsCircuit
	o.breakers = resilience.NewServiceBreakers(cb, o.circuitChanged)
	if src.Geocoder != nil {
		o.breakers.Get(SourceBAN)
	}
	for _, t := range o.tasks() {
		if o.configured(t.source) {
			o.breakers.Get(t.source)
		}
	}
	return o
}

// CircuitStates reports the breaker state of every configured registry.
func (o *Orchestrator) CircuitStates() map[string]string {
	states := o.breakers.States()
	out := make(map[string]string, len(states))
	for name, s := range states {
		out[name] = s.String()
	}
	return out
}

func (o *Orchestrator) circuitChanged(service string, from, to resilience.CircuitState) {
	zap.L().Warn("acquisition: circuit state changed",
		zap.String("source", service),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	o.metrics.SetCircuitState(service, int(to))
}

func (o *Orchestrator) policy(source, operation string) resilience.Policy {
	retry := o.cfg.Retry
	retry.OnRetry = resilience.RetryLogger(source, operation)
	return resilience.Policy{Timeout: o.cfg.CallTimeout, Retry: retry}
}
