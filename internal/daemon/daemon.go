// Package daemon supervises watch mode: the refresh poller, the config
// watcher and the observability listeners run under one context, and
// process signals translate into actions on them.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"phpvm/internal/poller"
	"phpvm/internal/server"
	"phpvm/internal/switcher"
	"phpvm/internal/watcher"
)

// Daemon owns the lifecycle of the long-running components. It performs the
// initial bootstrap, spawns the loops, and blocks until shutdown.
type Daemon struct {
	logger        zerolog.Logger
	switcher      *switcher.Switcher
	poller        *poller.Poller
	watcher       *watcher.Watcher
	serverOptions server.Options
}

// Option customizes daemon wiring.
type Option func(*Daemon)

// WithWatcher attaches a config watcher to supervise.
func WithWatcher(w *watcher.Watcher) Option {
	return func(d *Daemon) {
		d.watcher = w
	}
}

// WithServerOptions enables the health and metrics listeners.
func WithServerOptions(opts server.Options) Option {
	return func(d *Daemon) {
		d.serverOptions = opts
	}
}

// New constructs a Daemon supervising the given switcher and poller.
func New(logger zerolog.Logger, sw *switcher.Switcher, p *poller.Poller, opts ...Option) *Daemon {
	d := &Daemon{
		logger:   logger,
		switcher: sw,
		poller:   p,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run bootstraps the environment and blocks until the context is canceled
// or a termination signal arrives. A failed bootstrap is fatal; after it,
// component errors are logged and shutdown proceeds normally.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.switcher.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap environment: %w", err)
	}

	server.Serve(ctx, d.logger, d.serverOptions)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.poller.Run(ctx); err != nil {
			d.logger.Error().Err(err).Msg("poller exited with error")
			cancel()
		}
	}()

	if d.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.watcher.Run(ctx); err != nil {
				d.logger.Error().Err(err).Msg("config watcher exited with error")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.handleSignals(ctx, cancel)
	}()

	wg.Wait()
	d.logger.Info().Msg("all components stopped")
	return nil
}

// handleSignals maps SIGINT and SIGTERM to shutdown and SIGHUP to an
// immediate refresh cycle.
func (d *Daemon) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				d.logger.Info().Str("signal", sig.String()).Msg("refresh requested")
				d.poller.RequestRefresh()
				continue
			}
			d.logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
			return
		}
	}
}
