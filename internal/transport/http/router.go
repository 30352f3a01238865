// Package httptransport assembles the HTTP surface: the shared middleware chain,
// the market routes and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"market/internal/auth/securitycontext"
	"market/pkg/platform/diagnostics"
	"market/pkg/platform/httputil"
	"market/pkg/platform/middleware/metadata"
	"market/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a module's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config carries everything NewRouter wires together.
type Config struct {
	Logger *slog.Logger
	// Principal runs after the security context is seeded and before any module route,
	// for stages that may install an already authenticated principal (bearer tokens).
	Principal func(http.Handler) http.Handler
	Modules   []RouteRegistrar
	Health    []HealthCheck
	Metrics   http.Handler
}

// NewRouter builds the chi router. Order matters: request ids feed the diagnostics
// map, which client metadata writes into, and every request gets its own security
// context before authentication runs.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(diagnostics.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(securitycontext.Middleware)
	if cfg.Principal != nil {
		r.Use(cfg.Principal)
	}

	r.Get("/health", healthHandler(cfg.Logger, cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	for _, m := range cfg.Modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", c.Name, "error", err)
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
