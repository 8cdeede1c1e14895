package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/acquisition"
	"github.com/sells-group/audit-flash/internal/condo"
	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/metrics"
	"github.com/sells-group/audit-flash/internal/regulation"
	"github.com/sells-group/audit-flash/internal/resilience"
	"github.com/sells-group/audit-flash/internal/store"
	"github.com/sells-group/audit-flash/pkg/cadastre"
	"github.com/sells-group/audit-flash/pkg/dpe"
	"github.com/sells-group/audit-flash/pkg/dvf"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

// condoBackend is a registry that can also be bulk-loaded.
type condoBackend interface {
	condo.Registry
	condo.Sink
}

// auditEnv holds the store, registries and orchestrator shared by the
// serve and audit commands.
type auditEnv struct {
	Store        store.Store
	Condos       condoBackend
	Engine       *engine.Engine
	Orchestrator *acquisition.Orchestrator
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Driver == "postgres" && cfg.Store.DatabaseURL == "" {
		return nil, eris.New("postgres store requires store.database_url (AUDIT_STORE_DATABASE_URL)")
	}
	return store.Open(ctx, store.Options{
		Driver:   cfg.Store.Driver,
		DSN:      cfg.Store.DatabaseURL,
		Pool:     cfg.Store.Pool,
		RedisURL: cfg.Redis.URL,
	})
}

// baseStore returns the relational backend behind st.
func baseStore(st store.Store) store.Store {
	if s, ok := st.(*store.Split); ok {
		return s.Diagnostics
	}
	return st
}

// initCondos opens the condominium registry in the same database as the
// store, falling back to an in-memory registry.
func initCondos(ctx context.Context, st store.Store) (condoBackend, error) {
	switch s := baseStore(st).(type) {
	case *store.PostgresStore:
		r := condo.NewPostgres(s.Pool())
		if err := r.Migrate(ctx); err != nil {
			return nil, err
		}
		return r, nil
	case *store.SQLiteStore:
		r := condo.NewSQLite(s.DB())
		if err := r.Migrate(ctx); err != nil {
			return nil, err
		}
		return r, nil
	default:
		zap.L().Warn("condominium registry is in memory; run against sqlite or postgres to use imported data")
		return condo.NewMemory(), nil
	}
}

// loadTable returns the default regulatory table, overlaid with the
// configured YAML file when set.
func loadTable() (*regulation.Table, error) {
	if cfg.Regulation.Path == "" {
		return regulation.Default(), nil
	}
	t, err := regulation.Load(cfg.Regulation.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("regulation table loaded", zap.String("path", cfg.Regulation.Path))
	return t, nil
}

// initSources builds the registry clients from config. The geocode cache is
// enabled when the store is Postgres.
func initSources(ctx context.Context, st store.Store, condos condo.Registry, m *metrics.Metrics) (acquisition.Sources, error) {
	r := cfg.Registries

	geoOpts := []geocode.Option{
		geocode.WithBaseURL(r.Geocode.BaseURL),
		geocode.WithMinScore(r.Geocode.MinScore),
		geocode.WithCacheObserver(m.IncGeocodeCache),
	}
	if r.Geocode.RateLimit > 0 {
		geoOpts = append(geoOpts, geocode.WithRateLimit(r.Geocode.RateLimit))
	}
	if ps, ok := baseStore(st).(*store.PostgresStore); ok {
		if _, err := ps.Pool().Exec(ctx, geocode.CacheMigration); err != nil {
			return acquisition.Sources{}, eris.Wrap(err, "migrate geocode cache")
		}
		ttl := time.Duration(r.Geocode.CacheTTLHours) * time.Hour
		geoOpts = append(geoOpts, geocode.WithCache(ps.Pool(), ttl))
		zap.L().Info("geocode cache enabled", zap.Duration("ttl", ttl))
	}

	cadOpts := []cadastre.Option{cadastre.WithBaseURL(r.Cadastre.BaseURL)}
	if r.Cadastre.RateLimit > 0 {
		cadOpts = append(cadOpts, cadastre.WithRateLimit(r.Cadastre.RateLimit))
	}

	dpeOpts := []dpe.Option{dpe.WithBaseURL(r.DPE.BaseURL)}
	if r.DPE.RateLimit > 0 {
		dpeOpts = append(dpeOpts, dpe.WithRateLimit(r.DPE.RateLimit))
	}
	if r.DPE.RadiusMeters > 0 {
		dpeOpts = append(dpeOpts, dpe.WithRadius(r.DPE.RadiusMeters))
	}

	dvfOpts := []dvf.Option{dvf.WithBaseURL(r.DVF.BaseURL)}
	if r.DVF.RateLimit > 0 {
		dvfOpts = append(dvfOpts, dvf.WithRateLimit(r.DVF.RateLimit))
	}
	if r.DVF.RadiusMeters > 0 {
		dvfOpts = append(dvfOpts, dvf.WithRadius(r.DVF.RadiusMeters))
	}

	return acquisition.Sources{
		Geocoder: geocode.NewClient(geoOpts...),
		Cadastre: cadastre.NewClient(cadOpts...),
		Condos:   condos,
		Energy:   dpe.NewClient(dpeOpts...),
		Market:   dvf.NewClient(dvfOpts...),
	}, nil
}

// acquisitionConfig maps the flat config values onto the orchestrator's.
func acquisitionConfig() acquisition.Config {
	a := cfg.Acquisition
	return acquisition.Config{
		CallTimeout: a.CallTimeout(),
		Deadline:    a.Deadline(),
		Retry:       resilience.FromRetryConfig(a.MaxAttempts, a.InitialBackoffMs, a.MaxBackoffMs),
		Circuit:     resilience.FromCircuitConfig(a.FailureThreshold, a.ResetTimeoutSecs),
		SessionTTL:  a.SessionTTL(),
	}
}

// initEnv validates config for mode and wires every component. Callers
// should defer env.Close().
func initEnv(ctx context.Context, mode string) (*auditEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	table, err := loadTable()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &auditEnv{Store: st, Engine: engine.New(table)}

	env.Condos, err = initCondos(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Registry = prometheus.NewRegistry()
	env.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env.Metrics = metrics.New(env.Registry)

	src, err := initSources(ctx, st, env.Condos, env.Metrics)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Orchestrator = acquisition.New(src, st, env.Engine,
		acquisition.WithConfig(acquisitionConfig()),
		acquisition.WithMetrics(env.Metrics),
	)

	zap.L().Info("audit environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("redis_sessions", cfg.Redis.URL != ""),
	)
	return env, nil
}
