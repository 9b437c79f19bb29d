package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/engine"
	"golang.org/x/sync/errgroup"
)

// Run executes the main application logic: resolve the entry classes once,
// or keep resolving them on every change in watch mode. The health check
// server, when enabled, runs alongside until Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.config.HealthcheckPort > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HealthcheckPort))
		if err != nil {
			return fmt.Errorf("failed to start health check server: %w", err)
		}
		g.Go(func() error { return a.serveHealthCheck(gctx, ln) })
	}

	g.Go(func() error {
		// The health server only lives as long as the resolution work.
		defer cancel()
		if a.config.Watch {
			return a.watch(gctx)
		}
		return a.Resolve(gctx)
	})

	err := g.Wait()
	a.logger.Debug("App.Run method finished.", "error", err)
	return err
}

// Resolve builds a fresh engine, preloads the configured resources,
// requires the entry classes and prints the order they were defined in as
// "name<TAB>path" lines.
func (a *App) Resolve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	a.ready.Store(false)

	root, err := filepath.Abs(a.config.Root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", a.config.Root, err)
	}
	cfg := a.loaderCfg
	e, err := engine.New(engine.Options{
		Loader:  &cfg,
		Root:    root,
		Modules: a.modules,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	a.mu.Lock()
	a.engine = e
	a.mu.Unlock()

	if len(a.config.Preload) > 0 {
		n, err := e.Preload(ctx, a.config.Preload...)
		if err != nil {
			return fmt.Errorf("preload failed: %w", err)
		}
		logger.Debug("Preloaded class resources.", "count", n)
	}

	logger.Info("🚀 Resolving entry classes...", "entry", a.config.Entry, "mode", cfg.Mode.String())
	if err := e.Require(ctx, a.config.Entry, func() {
		logger.Debug("Entry classes defined.")
	}); err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}
	e.OnReady(func() { a.ready.Store(true) })
	if err := e.Run(ctx); err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	infos := make([]ClassInfo, 0, len(e.History()))
	for _, name := range e.History() {
		info := ClassInfo{Name: name, Path: e.Loader().GetPath(name)}
		if c, ok := e.Class(name); ok {
			if p := c.Parent(); p != nil {
				info.Parent = p.Name()
			}
			info.Requires = c.Requires()
			info.Uses = c.Uses()
			info.Mixins = c.MixinSlots()
			info.Statics = c.StaticNames()
			info.Config = c.ConfigKeys()
		}
		infos = append(infos, info)
		fmt.Fprintf(a.outW, "%s\t%s\n", info.Name, info.Path)
	}
	a.mu.Lock()
	a.snapshot = infos
	a.mu.Unlock()
	logger.Info("🏁 Resolution finished.", "classes", len(e.Classes()))
	return nil
}
