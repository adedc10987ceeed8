package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"phpvm/internal/brew"
	"phpvm/internal/display"
	"phpvm/internal/switcher"
)

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <version>",
		Short: "Switch the environment to a PHP version",
		Args:  cobra.ExactArgs(1),
		RunE:  runUse,
	}
}

// normalizeSeries accepts "8.1", "php@8.1" and "php8.1" and returns the
// bare series.
func normalizeSeries(arg string) string {
	arg = strings.TrimSpace(strings.ToLower(arg))
	arg = strings.TrimPrefix(arg, "php@")
	arg = strings.TrimPrefix(arg, "php")
	return arg
}

func runUse(cmd *cobra.Command, args []string) error {
	version := normalizeSeries(args[0])
	if !brew.IsSupported(version) {
		return fmt.Errorf("%q is not a supported PHP series", args[0])
	}

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
	if !sw.Versions().Contains(version) {
		return fmt.Errorf("%s is not installed (try: brew install %s)", brew.Formula(version), brew.Formula(version))
	}

	if err := sw.SwitchTo(cmd.Context(), version); err != nil {
		return err
	}

	active := sw.Active()
	if !active.Valid || active.Version != version {
		return fmt.Errorf("switch did not complete; the environment now serves %s", describeActive(active))
	}
	return nil
}

func describeActive(active brew.Installation) string {
	if active.Valid {
		return "PHP " + active.Version
	}
	if active.Error != "" {
		return "a broken installation (" + active.Error + ")"
	}
	return "a broken installation"
}
