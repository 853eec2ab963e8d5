package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/formfling/config"
	"go.uber.org/zap"
)

type noDeps struct{}

func TestRun_ConfigError(t *testing.T) {
	errBad := errors.New("missing smtp_to_email")
	hooks := Hooks[noDeps]{
		Name: "test",
		LoadConfig: func(*zap.Logger, []string) (*config.Config, error) {
			return nil, errBad
		},
	}
	if err := Run(context.Background(), hooks, nil); !errors.Is(err, errBad) {
		t.Fatalf("Run = %v, want %v", err, errBad)
	}
}

func TestRun_DepsError(t *testing.T) {
	errDeps := errors.New("bad template")
	handlerBuilt := false
	hooks := Hooks[noDeps]{
		Name: "test",
		LoadConfig: func(*zap.Logger, []string) (*config.Config, error) {
			return &config.Config{Env: "dev", LogLevel: "error"}, nil
		},
		BuildDeps: func(context.Context, *config.Config, *zap.Logger) (noDeps, error) {
			return noDeps{}, errDeps
		},
		BuildHandler: func(*config.Config, noDeps, *zap.Logger) (http.Handler, error) {
			handlerBuilt = true
			return http.NotFoundHandler(), nil
		},
	}
	if err := Run(context.Background(), hooks, nil); !errors.Is(err, errDeps) {
		t.Fatalf("Run = %v, want %v", err, errDeps)
	}
	if handlerBuilt {
		t.Error("handler built after deps failure")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{Env: "dev", LogLevel: "error"}
	cfg.HTTP.HTTPPort = 0
	cfg.HTTP.ShutdownTimeout = time.Second

	hooks := Hooks[noDeps]{
		Name: "test",
		LoadConfig: func(*zap.Logger, []string) (*config.Config, error) {
			return cfg, nil
		},
		BuildDeps: func(context.Context, *config.Config, *zap.Logger) (noDeps, error) {
			return noDeps{}, nil
		},
		BuildHandler: func(*config.Config, noDeps, *zap.Logger) (http.Handler, error) {
			// Cancel before serving; Run should shut down cleanly.
			cancel()
			return http.NotFoundHandler(), nil
		},
	}
	if err := Run(ctx, hooks, []string{"--ignored"}); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
}
