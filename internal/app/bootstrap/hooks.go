package bootstrap

import (
	"context"
	"net/http"

	"github.com/dalemusser/formfling/app"
	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/contact"
	"github.com/dalemusser/formfling/health"
	"github.com/dalemusser/formfling/mailer"
	"github.com/dalemusser/formfling/metrics"
	"github.com/dalemusser/formfling/middleware"
	"github.com/dalemusser/formfling/recaptcha"
	"github.com/dalemusser/formfling/render"
	"github.com/dalemusser/formfling/router"
	"github.com/dalemusser/formfling/version"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoadConfig loads and validates the service config.
func LoadConfig(logger *zap.Logger, args []string) (*config.Config, error) {
	return config.Load(logger, args)
}

// BuildDeps constructs the mail dispatcher, email renderer, reCAPTCHA
// verifier and, when enabled, the test form.
func BuildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Deps, error) {
	d := mailer.New(cfg.SMTP)
	if err := mailCheck(d)(ctx); err != nil {
		// /health reports the same state; keep serving.
		logger.Warn("mail client unavailable", zap.Error(err))
	}

	deps := Deps{
		Sender:    d,
		MailCheck: mailCheck(d),
		Renderer:  render.NewFromPath(cfg.EmailTemplate, logger.Named("render")),
		Captcha:   recaptcha.New(cfg.Recaptcha, nil),
	}
	if deps.Captcha.Enabled() {
		logger.Info("reCAPTCHA verification enabled",
			zap.String("action", cfg.Recaptcha.Action),
			zap.Float64("min_score", cfg.Recaptcha.MinScore))
	}

	if cfg.EnableTestForm {
		tf, err := contact.NewTestForm(cfg.TestFormTemplate, contact.TestFormData{
			SiteKey: cfg.Recaptcha.SiteKey,
			Action:  cfg.Recaptcha.Action,
		}, logger)
		if err != nil {
			return Deps{}, err
		}
		deps.TestForm = tf
	}
	return deps, nil
}

// BuildHandler constructs the HTTP handler for the service.
func BuildHandler(cfg *config.Config, deps Deps, logger *zap.Logger) (http.Handler, error) {
	r := router.New(cfg, logger)

	contact.New(cfg, deps.Renderer, deps.Sender, deps.Captcha, logger.Named("contact")).Mount(r)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.PublicCORS())
		health.Reporter{
			Service: cfg.ServiceName,
			Mail:    deps.MailCheck,
			Logger:  logger.Named("health"),
		}.Mount(pr)
		version.Mount(pr)
		// cors answers preflights itself but only on a routed method.
		pr.Options("/health", noContent)
		pr.Options("/version", noContent)
	})

	if cfg.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	if deps.TestForm != nil {
		r.Method(http.MethodGet, "/test", deps.TestForm)
	}

	return r, nil
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Hooks wires FormFling into the app lifecycle.
var Hooks = app.Hooks[Deps]{
	Name:         "formfling",
	LoadConfig:   LoadConfig,
	BuildDeps:    BuildDeps,
	BuildHandler: BuildHandler,
}
