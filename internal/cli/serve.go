package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	tendrilhttp "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/observability"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Handler builds the HTTP surface of the app, with /metrics.
func (a *App) Handler() http.Handler {
	return tendrilhttp.NewHandler(a.Session,
		tendrilhttp.WithLogger(a.Logger),
		tendrilhttp.WithMetrics(observability.Handler(a.Registry)),
	)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.Config.HTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting server", "addr", addr, "definitions", a.Session.Definitions())
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.Logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		a.Logger.Info("Server stopped")
		return nil
	}
}
