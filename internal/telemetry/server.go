package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	serverReadTimeout  = 5 * time.Second
	serverWriteTimeout = 15 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// HealthFunc reports whether the daemon can reach its dependencies
type HealthFunc func(ctx context.Context) error

// NewMetricsServer builds the HTTP server exposing /metrics and /healthz on addr
func NewMetricsServer(addr string, tel *Telemetry, health HealthFunc) (*http.Server, error) {
	handler := tel.MetricsHandler()
	if handler == nil {
		return nil, fmt.Errorf("prometheus endpoint is not configured")
	}

	metricsMiddleware, err := MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, metricsMiddleware)
	r.Method(http.MethodGet, "/metrics", handler)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				slog.WarnContext(req.Context(), "Health check failed", "error", err)
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: serverReadTimeout,
		ReadTimeout:       serverReadTimeout,
		WriteTimeout:      serverWriteTimeout,
	}, nil
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server forced to shutdown: %w", err)
	}
	return <-errCh
}
