package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vk/classkit/internal/ctxlog"
)

// healthHandler reports that the process is alive.
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// readyHandler answers 503 until every entry class and soft dependency of
// the latest resolution is defined.
func (app *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !app.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "NOT READY")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "READY")
}

// classesHandler lists the classes of the latest successful resolution in
// definition order.
func (app *App) classesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Classes())
}

// classHandler describes one class of the latest successful resolution.
func (app *App) classHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, c := range app.Classes() {
		if c.Name == name {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("class %q is not defined", name)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handler builds the router of the health check server.
func (app *App) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", app.healthHandler)
	r.Get("/ready", app.readyHandler)
	r.Get("/classes", app.classesHandler)
	r.Get("/classes/{name}", app.classHandler)
	r.Handle("/metrics", app.metrics.Handler())
	return r
}

// serveHealthCheck runs the health check server on ln until ctx is done.
func (app *App) serveHealthCheck(ctx context.Context, ln net.Listener) error {
	logger := ctxlog.FromContext(ctx)
	app.httpServer = &http.Server{
		Handler:           app.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://%s/health", ln.Addr()))
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("health check server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return app.closeHealthCheckServer()
}

func (app *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(app.ctx)
	if app.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := app.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Health check server shut down gracefully.")
	return nil
}
