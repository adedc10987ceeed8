package notify

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"phpvm/internal/shell"
)

// DesktopNotifier posts events to the local notification center. Delivery
// goes through the command gateway like every other external effect:
// osascript on darwin, notify-send elsewhere.
type DesktopNotifier struct {
	logger zerolog.Logger
	runner shell.Runner
	goos   string
}

// DesktopOption customizes DesktopNotifier behavior.
type DesktopOption func(*DesktopNotifier)

// WithDesktopPlatform overrides platform detection (primarily for testing).
func WithDesktopPlatform(goos string) DesktopOption {
	return func(d *DesktopNotifier) {
		d.goos = goos
	}
}

// NewDesktopNotifier creates a notifier for the local notification center.
func NewDesktopNotifier(logger zerolog.Logger, runner shell.Runner, opts ...DesktopOption) *DesktopNotifier {
	notifier := &DesktopNotifier{
		logger: logger,
		runner: runner,
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier
}

// Notify implements Notifier.
func (n *DesktopNotifier) Notify(ctx context.Context, event Event) error {
	command := n.command(event)
	result, err := n.runner.Run(ctx, command)
	if err != nil {
		return fmt.Errorf("deliver desktop notification: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("desktop notification exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	n.logger.Debug().
		Str("kind", event.Kind).
		Str("title", event.Title).
		Msg("desktop notification sent")

	return nil
}

func (n *DesktopNotifier) command(event Event) string {
	if n.goos == "darwin" {
		script := "display notification " + appleScriptQuote(event.Body) + " with title " + appleScriptQuote(event.Title)
		return "osascript -e " + shellQuote(script)
	}
	return "notify-send " + shellQuote(event.Title) + " " + shellQuote(event.Body)
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
