package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"phpvm/internal/brew"
	"phpvm/internal/checkup"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the Homebrew PHP environment",
		RunE:  runDoctor,
	}
}

type checkLine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // "ok" or "error"
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	report := a.validate(cmd.Context())
	lines := checkLines(report)

	if err := writeDoctorResult(cmd, lines, report.Env); err != nil {
		return err
	}

	if failure, ok := report.FirstFailure(); ok {
		return failureError(failure)
	}
	return nil
}

func checkLines(report checkup.Report) []checkLine {
	lines := make([]checkLine, 0, len(report.Results))
	for _, result := range report.Results {
		line := checkLine{ID: result.ID, Name: result.Name, Status: "ok"}
		if !result.Passed {
			line.Status = "error"
			line.Detail = result.Diagnostic
			line.Hint = result.Hint
		}
		lines = append(lines, line)
	}
	return lines
}

func writeDoctorResult(cmd *cobra.Command, lines []checkLine, env brew.Env) error {
	if outputJSON {
		payload := struct {
			Checks []checkLine `json:"checks"`
			Prefix string      `json:"prefix,omitempty"`
		}{Checks: lines, Prefix: env.Prefix}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)
	faint := lipgloss.NewStyle().Faint(true).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("ENVIRONMENT CHECKS:"))

	for _, line := range lines {
		status := green.Render("OK")
		detail := ""
		if line.Status != "ok" {
			status = red.Render("ERROR")
			detail = line.Detail
			if line.Hint != "" {
				detail += " " + faint.Render("("+line.Hint+")")
			}
		}
		fmt.Fprintf(out, "  %-24s %s    %s\n", line.Name+":", status, detail)
	}

	if env.Prefix != "" {
		fmt.Fprintln(out, bold.Render("RESOLVED PATHS:"))
		fmt.Fprintf(out, "  %-24s %s\n", "prefix:", env.Prefix)
		fmt.Fprintf(out, "  %-24s %s\n", "brew:", env.BrewBin)
		fmt.Fprintf(out, "  %-24s %s\n", "php:", env.PhpBin)
		fmt.Fprintf(out, "  %-24s %s\n", "valet:", env.ValetBin)
	}

	return nil
}
