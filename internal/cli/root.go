// Package cli wires the phpvm commands. Each command builds only the
// components it needs; the long-running pieces live behind the watch
// command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputJSON bool

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "phpvm",
		Short:         "Homebrew PHP version manager",
		Long:          "phpvm validates a Homebrew PHP setup, switches between installed PHP versions and keeps services and notifications in step.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newFixCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}
