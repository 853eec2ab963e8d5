// app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/httputil"
	"github.com/dalemusser/formfling/logging"
	"github.com/dalemusser/formfling/metrics"
	"github.com/dalemusser/formfling/server"
	"github.com/dalemusser/formfling/version"
	"go.uber.org/zap"
)

// Hooks defines the integration points the service provides to Run.
type Hooks[D any] struct {
	// Name is used only for logging/diagnostics.
	Name string

	// LoadConfig returns the validated service config. args are the
	// command-line arguments without the program name.
	LoadConfig func(logger *zap.Logger, args []string) (*config.Config, error)

	// BuildDeps constructs long-lived collaborators (mail dispatcher,
	// renderer, captcha verifier, test form) from config. Template and
	// relay problems that should stop startup are returned here.
	BuildDeps func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (D, error)

	// BuildHandler constructs the final http.Handler: router, middleware
	// and routes.
	BuildHandler func(cfg *config.Config, deps D, logger *zap.Logger) (http.Handler, error)
}

// Run executes the standard startup sequence:
//
//  1. Bootstrap logger
//  2. Load config (Hooks.LoadConfig)
//  3. Build final logger based on config
//  4. Register metrics (when enabled)
//  5. Build dependencies (Hooks.BuildDeps)
//  6. Wire shutdown signals to a context
//  7. Build the HTTP handler (Hooks.BuildHandler)
//  8. Start the HTTP(S) server and block until shutdown
//
// Startup failures are returned; main decides how to exit.
func Run[D any](ctx context.Context, hooks Hooks[D], args []string) error {
	bootstrap := logging.BootstrapLogger()
	defer func() { _ = bootstrap.Sync() }()
	bootstrap.Info("bootstrap logger initialized",
		zap.String("app", hooks.Name),
		zap.String("version", version.String()))

	cfg, err := hooks.LoadConfig(bootstrap, args)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("env", cfg.Env),
		zap.String("log_level", cfg.LogLevel),
	)

	logger, err := logging.BuildLogger(cfg.LogLevel, cfg.Env, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("logger initialized", zap.String("app", hooks.Name))
	logger.Debug("effective config", zap.String("config", cfg.Dump()))

	httputil.SetJSONLogger(logger)

	if cfg.EnableMetrics {
		metrics.RegisterDefault(logger)
	}

	deps, err := hooks.BuildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("dependency build failed", zap.Error(err))
		return fmt.Errorf("build deps: %w", err)
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(cfg, deps, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, cfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
