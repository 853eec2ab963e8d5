// router/router.go
package router

import (
	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/logging"
	"github.com/dalemusser/formfling/metrics"
	"github.com/dalemusser/formfling/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router pre-wired with FormFling's standard middleware stack:
// - RequestID
// - RealIP
// - Recoverer (panic → 500)
// - security headers (HSTS only when serving HTTPS)
// - body size limit (MaxRequestBodyBytes)
// - metrics HTTP middleware (when enabled)
// - request logging
// - NotFound / MethodNotAllowed JSON handlers
//
// Routes are mounted by the caller. CORS is per-route: /contact answers with
// its own origin decision and /health uses the public policy.
func New(cfg *config.Config, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.SecurityHeadersFromConfig(cfg))

	r.Use(middleware.LimitBodySize(cfg.MaxRequestBodyBytes))

	if cfg.EnableMetrics {
		r.Use(metrics.HTTPMetrics)
	}

	r.Use(logging.RequestLogger(logger))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
