package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"phpvm/internal/healthcheck"
	"phpvm/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures the optional observability listeners for watch mode.
// A zero port disables the corresponding listener; equal ports share one.
type Options struct {
	PollInterval time.Duration
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
	HealthPort   int
	MetricsPort  int
}

// Serve launches the configured HTTP listeners and returns immediately.
// Servers drain with a bounded shutdown once ctx is cancelled.
func Serve(ctx context.Context, logger zerolog.Logger, opts Options) {
	type listener struct {
		mux    *http.ServeMux
		labels []string
	}
	listeners := make(map[int]*listener)
	ensure := func(port int) *listener {
		if l, ok := listeners[port]; ok {
			return l
		}
		l := &listener{mux: http.NewServeMux()}
		listeners[port] = l
		return l
	}

	if opts.HealthPort > 0 {
		l := ensure(opts.HealthPort)
		l.mux.HandleFunc("/healthz", healthcheck.HealthHandler(opts.Tracker, opts.PollInterval))
		l.mux.HandleFunc("/readyz", healthcheck.ReadyHandler(opts.Tracker))
		l.labels = append(l.labels, "health")
	}

	if opts.MetricsPort > 0 && opts.Metrics != nil {
		l := ensure(opts.MetricsPort)
		l.mux.Handle("/metrics", opts.Metrics.Handler())
		l.labels = append(l.labels, "metrics")
	}

	for port, l := range listeners {
		startServer(ctx, logger, l.mux, port, strings.Join(l.labels, "/"))
	}
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
