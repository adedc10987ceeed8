package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"phpvm/internal/display"
	"phpvm/internal/switcher"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active PHP installation",
		RunE:  runStatus,
	}
}

type statusPayload struct {
	ActiveVersion string   `json:"active_version,omitempty"`
	Valid         bool     `json:"valid"`
	Error         string   `json:"error,omitempty"`
	MemoryLimit   string   `json:"memory_limit,omitempty"`
	MaxUploadSize string   `json:"upload_max_filesize,omitempty"`
	MaxPostSize   string   `json:"post_max_size,omitempty"`
	Extensions    []string `json:"extensions,omitempty"`
	Versions      []string `json:"versions"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireHealthy(cmd); err != nil {
		return err
	}

	if outputJSON {
		sw, err := a.buildSwitcher()
		if err != nil {
			return err
		}
		if err := sw.Bootstrap(cmd.Context()); err != nil {
			return err
		}

		active := sw.Active()
		payload := statusPayload{
			Valid:         active.Valid,
			Error:         active.Error,
			MemoryLimit:   active.MemoryLimit,
			MaxUploadSize: active.MaxUploadSize,
			MaxPostSize:   active.MaxPostSize,
			Extensions:    active.Extensions,
			Versions:      sw.Versions(),
		}
		if active.Valid {
			payload.ActiveVersion = active.Version
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	console := display.NewConsole(cmd.OutOrStdout(), display.StaticPreferences{DynamicStatus: a.cfg.DynamicStatus})
	sw, err := a.buildSwitcher(switcher.WithPublisher(display.NewPublisher(console)))
	if err != nil {
		return err
	}
	return sw.Bootstrap(cmd.Context())
}
