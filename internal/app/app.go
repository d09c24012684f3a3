// Package app wires the solver together: it configures logging, loads the
// tuning settings, resolves the requested stencil solution from the
// registry, and drives the run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/XeonPhiNexus/yask/internal/config"
	"github.com/XeonPhiNexus/yask/internal/ctxlog"
	"github.com/XeonPhiNexus/yask/internal/engine"
	"github.com/XeonPhiNexus/yask/internal/registry"
)

// Config holds everything the application needs to run.
type Config struct {
	// ConfigPath names the HCL tuning file; empty means defaults.
	ConfigPath string

	// Stencil, Steps, and ForceScalar override the tuning file when set.
	Stencil     string
	Steps       int64
	ForceScalar bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates and normalizes a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Steps < 0 {
		return nil, fmt.Errorf("steps must be >= 0, got %d", cfg.Steps)
	}
	return &cfg, nil
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	settings *config.Settings
	solution engine.Solution
}

// New builds a fully initialized App: logger, settings, registered
// solutions, and the selected solution instance.
func New(ctx context.Context, outW io.Writer, appCfg *Config) (*App, error) {
	logger := newLogger(appCfg.LogLevel, appCfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	registerCoreSolutions()

	settings := config.Default()
	if appCfg.ConfigPath != "" {
		var err error
		settings, err = config.Load(ctx, appCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading tuning file: %w", err)
		}
	}
	if appCfg.Stencil != "" {
		settings.Stencil = appCfg.Stencil
	}
	if appCfg.Steps > 0 {
		settings.Steps = appCfg.Steps
	}
	if appCfg.ForceScalar {
		settings.ForceScalar = true
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	factory, err := registry.Lookup(settings.Stencil)
	if err != nil {
		return nil, err
	}
	logger.Debug("Solution resolved.", "stencil", settings.Stencil)

	return &App{
		outW:     outW,
		logger:   logger,
		settings: settings,
		solution: factory(),
	}, nil
}

// Settings returns the resolved tuning settings. Primarily for testing.
func (a *App) Settings() *config.Settings { return a.settings }
