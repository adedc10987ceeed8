package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Console renders state for one-shot commands.
type Console struct {
	out   io.Writer
	prefs Preferences

	bold   lipgloss.Style
	green  lipgloss.Style
	yellow lipgloss.Style
	red    lipgloss.Style
	faint  lipgloss.Style
}

// NewConsole creates a styled console renderer.
func NewConsole(out io.Writer, prefs Preferences) *Console {
	if prefs == nil {
		prefs = StaticPreferences{DynamicStatus: true}
	}
	return &Console{
		out:    out,
		prefs:  prefs,
		bold:   lipgloss.NewStyle().Bold(true).Inline(true),
		green:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true),
		yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true),
		red:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true),
		faint:  lipgloss.NewStyle().Faint(true).Inline(true),
	}
}

// Render implements Renderer. Transitional busy states render only a
// progress line (or nothing when dynamic status is off); the full picture
// prints once the operation settles, so one-shot commands do not repeat it.
func (c *Console) Render(state State) {
	if state.Busy {
		if !c.prefs.DynamicStatusEnabled() {
			return
		}
		if state.Target != "" {
			fmt.Fprintln(c.out, c.yellow.Render(fmt.Sprintf("switching to php@%s ...", state.Target)))
		} else {
			fmt.Fprintln(c.out, c.yellow.Render("working ..."))
		}
		return
	}

	active := state.Active
	switch {
	case active.Valid:
		fmt.Fprintf(c.out, "%s %s\n", c.bold.Render("Active:"), c.green.Render("PHP "+active.Version))
	case active.Error != "":
		fmt.Fprintf(c.out, "%s %s %s\n", c.bold.Render("Active:"), c.red.Render("broken"), c.faint.Render(active.Error))
	default:
		fmt.Fprintf(c.out, "%s %s\n", c.bold.Render("Active:"), c.red.Render("unknown"))
	}

	if len(state.Versions) == 0 {
		return
	}
	fmt.Fprintln(c.out, c.bold.Render("Installed:"))
	for _, version := range state.Versions {
		marker := " "
		if active.Valid && version == active.Version {
			marker = "*"
		}
		fmt.Fprintf(c.out, "  %s php@%s\n", marker, version)
	}
}
