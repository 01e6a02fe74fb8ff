package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Definitions []string
}

// App is a bootstrapped session with its configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Session  *session.Manager
	Registry *prometheus.Registry
}

// ErrNoDefinitions is returned when neither flags nor config name a definition file.
var ErrNoDefinitions = errors.New("no process definitions given")

// LoadDefinitions reads the definition files named by opts, falling back to the config.
func LoadDefinitions(opts Options, cfg *config.Config) ([]*domain.ProcessDefinition, error) {
	paths := opts.Definitions
	if len(paths) == 0 {
		paths = cfg.Definitions
	}
	if len(paths) == 0 {
		return nil, ErrNoDefinitions
	}
	return dsl.LoadFiles(paths...)
}

// Bootstrap loads config and definitions and opens a session.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = opts.LogLevel
	}
	logger := cfg.Logger()

	defs, err := LoadDefinitions(opts, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	mgr, err := session.Open(ctx, defs, cfg, cfg.Session(),
		session.WithLogger(logger),
		session.WithLifecycleHooks(metrics.Hooks()),
		session.WithLifecycleHooks(observability.LoggingHooks(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	logger.Debug("Session opened", "session", mgr.ID(), "definitions", mgr.Definitions())
	return &App{Config: cfg, Logger: logger, Session: mgr, Registry: reg}, nil
}

// Close stops the session timers.
func (a *App) Close() {
	a.Session.Close()
}
