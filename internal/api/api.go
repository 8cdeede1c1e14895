// Package api exposes the Audit Flash lifecycle and the diagnostic engine
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/acquisition"
	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/model"
)

// Service is the acquisition lifecycle served by the audit routes.
type Service interface {
	Init(ctx context.Context, address string) (model.AuditResult, error)
	Complete(ctx context.Context, tempID string, values map[string]any) (model.AuditResult, error)
	Refresh(ctx context.Context, sessionID string) (model.AuditResult, error)
	Session(ctx context.Context, id string) (*model.AuditSession, error)
	Diagnose(ctx context.Context, sessionID string, p acquisition.DiagnoseParams) (*model.DiagnosticRecord, error)
	Diagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error)
	CircuitStates() map[string]string
}

// Handler serves every route.
type Handler struct {
	svc    Service
	engine *engine.Engine
	now    func() time.Time
}

// NewHandler creates a Handler. The clock dates stateless diagnostics sent
// without as_of; nil selects time.Now.
func NewHandler(svc Service, eng *engine.Engine, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{svc: svc, engine: eng, now: now}
}

// RouterOptions configures cross-cutting concerns.
type RouterOptions struct {
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// Gatherer backs GET /metrics when set.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the routes behind request ids, panic recovery, access
// logging and CORS.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/audits", func(r chi.Router) {
		r.Post("/", h.initAudit)
		r.Get("/{id}", h.getAudit)
		r.Post("/{id}/complete", h.completeAudit)
		r.Post("/{id}/refresh", h.refreshAudit)
		r.Post("/{id}/diagnostic", h.diagnoseAudit)
	})
	r.Post("/diagnostics", h.computeDiagnostic)
	r.Get("/diagnostics/{id}", h.getDiagnostic)
	r.Post("/allocations", h.allocate)
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
