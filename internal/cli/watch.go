package cli

import (
	"context"

	"github.com/spf13/cobra"

	"phpvm/internal/daemon"
	"phpvm/internal/display"
	"phpvm/internal/healthcheck"
	"phpvm/internal/metrics"
	"phpvm/internal/poller"
	"phpvm/internal/server"
	"phpvm/internal/switcher"
	"phpvm/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the environment and keep state, display and sinks in sync",
		Long:  "watch validates the environment, then polls it on an interval, follows edits to the active php.ini, and serves the optional health and metrics endpoints until interrupted. SIGHUP forces an immediate refresh.",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireHealthy(cmd); err != nil {
		return err
	}

	m := metrics.New()
	tracker := healthcheck.NewTracker()

	console := display.NewConsole(cmd.OutOrStdout(), display.StaticPreferences{DynamicStatus: a.cfg.DynamicStatus})
	publisher := display.NewPublisher(console, display.NewLog(a.logger))

	// The poller's cycle closes over the switcher built below; the loop only
	// starts inside daemon.Run, after wiring completes.
	var sw *switcher.Switcher
	p := poller.New(a.logger, a.cfg.PollInterval, func(ctx context.Context) error {
		return sw.Refresh(ctx)
	})

	w, err := watcher.New(a.logger, a.env, func(string) {
		p.RequestRefresh()
	})
	if err != nil {
		return err
	}
	defer w.Close()

	sw, err = a.buildSwitcher(
		switcher.WithPublisher(publisher),
		switcher.WithMetrics(m),
		switcher.WithTracker(tracker),
		switcher.WithRearmHook(w.Rearm),
	)
	if err != nil {
		return err
	}

	d := daemon.New(a.logger, sw, p,
		daemon.WithWatcher(w),
		daemon.WithServerOptions(server.Options{
			PollInterval: a.cfg.PollInterval,
			Tracker:      tracker,
			Metrics:      m,
			HealthPort:   a.cfg.HealthPort,
			MetricsPort:  a.cfg.MetricsPort,
		}),
	)
	return d.Run(cmd.Context())
}
