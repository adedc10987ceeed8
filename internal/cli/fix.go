package cli

import (
	"github.com/spf13/cobra"

	"phpvm/internal/display"
	"phpvm/internal/switcher"
)

func newFixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Reset PHP, web and DNS services to a known-good baseline",
		Long:  "fix unlinks and stops every installed PHP version at both privilege levels, relinks the default formula and restarts the DNS helper. Use it when services are stuck after a failed switch.",
		RunE:  runFix,
	}
}

func runFix(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireHealthy(cmd); err != nil {
		return err
	}

	console := display.NewConsole(cmd.OutOrStdout(), display.StaticPreferences{DynamicStatus: a.cfg.DynamicStatus})
	sw, err := a.buildSwitcher(switcher.WithPublisher(display.NewPublisher(console)))
	if err != nil {
		return err
	}

	if err := sw.Bootstrap(cmd.Context()); err != nil {
		return err
	}
	return sw.ForceRecover(cmd.Context())
}
