package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// WriteTimeout stays unset: hijacked WebSocket connections manage their own deadlines.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve accepts connections on l until the server is shut down. It returns
// nil after a graceful shutdown.
func (a *App) Serve(l net.Listener) error {
	a.logger.Info("Server listening", slog.String("addr", l.Addr().String()))
	err := a.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the configured port and serves until shutdown.
func (a *App) ListenAndServe() error {
	l, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	return a.Serve(l)
}

// Shutdown stops the service in dependency order: the HTTP listener, the
// WebSocket sessions, the presence registry, the store, and telemetry.
// Every step runs even if an earlier one fails.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	a.logger.Info("Shutting down HTTP server...")
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", slog.Any("error", err))
		errs = append(errs, err)
	}

	if err := a.gateway.Hub().Shutdown(a.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}

	a.registry.Clear()

	if err := a.store.Close(ctx); err != nil {
		a.logger.Error("Store close error", slog.Any("error", err))
		errs = append(errs, err)
	}

	if err := a.telemetry(ctx); err != nil {
		a.logger.Warn("Telemetry shutdown error", slog.Any("error", err))
		errs = append(errs, err)
	}

	a.logger.Info("Shutdown completed")
	return errors.Join(errs...)
}
