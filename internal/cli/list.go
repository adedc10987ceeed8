package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"phpvm/internal/brew"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed PHP versions",
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireHealthy(cmd); err != nil {
		return err
	}

	versions, err := a.registry.DiscoverVersions(cmd.Context())
	if err != nil {
		return fmt.Errorf("discover installed versions: %w", err)
	}
	active := a.registry.ResolveActive(cmd.Context())

	if outputJSON {
		payload := struct {
			Versions []string `json:"versions"`
			Active   string   `json:"active,omitempty"`
		}{Versions: versions}
		if active.Valid {
			payload.Active = active.Version
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Installed PHP versions:")
	for _, version := range versions {
		marker := " "
		if active.Valid && version == active.Version {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, brew.Formula(version))
	}
	return nil
}
