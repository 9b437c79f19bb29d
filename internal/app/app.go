package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vk/classkit/internal/config"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/engine"
	"github.com/vk/classkit/internal/loader"
	"github.com/vk/classkit/internal/metrics"
	"github.com/vk/classkit/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	loaderCfg  loader.Config
	modules    []registry.Module
	metrics    *metrics.Collector
	ready      atomic.Bool
	httpServer *http.Server

	mu       sync.Mutex
	engine   *engine.Engine
	snapshot []ClassInfo
}

// ClassInfo describes a defined class as reported by the inspection
// endpoints.
type ClassInfo struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Parent   string   `json:"parent,omitempty"`
	Requires []string `json:"requires,omitempty"`
	Uses     []string `json:"uses,omitempty"`
	Mixins   []string `json:"mixins,omitempty"`
	Statics  []string `json:"statics,omitempty"`
	Config   []string `json:"config,omitempty"`
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and metrics
// registry. An unreadable loader configuration is a fatal startup error and
// panics.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	loaderCfg := loader.DefaultConfig()
	if appConfig.ConfigPath != "" {
		cfg, err := config.Load(appConfig.ConfigPath)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		loaderCfg = cfg
		logger.Debug("Loader configuration loaded.", "path", appConfig.ConfigPath)
	}
	if appConfig.Sync {
		loaderCfg.Mode = loader.Sync
	}

	if len(modules) == 0 {
		modules = coreModules
	}

	return &App{
		ctx:       ctx,
		outW:      outW,
		logger:    logger,
		config:    appConfig,
		loaderCfg: loaderCfg,
		modules:   modules,
		metrics:   metrics.New(),
	}
}

// Engine returns the engine of the latest resolution. This is primarily for
// testing.
func (a *App) Engine() *engine.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine
}

// Classes returns the classes of the latest successful resolution in
// definition order.
func (a *App) Classes() []ClassInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Ready reports whether the latest resolution has completed.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// LoaderConfig returns the effective loader configuration.
func (a *App) LoaderConfig() loader.Config {
	return a.loaderCfg
}
