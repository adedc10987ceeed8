package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"phpvm/internal/brew"
	"phpvm/internal/checkup"
	"phpvm/internal/config"
	"phpvm/internal/logging"
	"phpvm/internal/notify"
	"phpvm/internal/shell"
	"phpvm/internal/state"
	"phpvm/internal/switcher"
)

// app bundles the plumbing every command starts from: configuration, logger
// and the shell gateway. The environment and registry are latched by
// requireHealthy once the startup battery has passed.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	gateway  *shell.Gateway
	env      brew.Env
	registry *brew.Registry
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithLevel(cfg.LogLevel)
	return &app{
		cfg:     cfg,
		logger:  logger,
		gateway: shell.New(logger),
	}, nil
}

// validate runs the startup battery without latching anything.
func (a *app) validate(ctx context.Context) checkup.Report {
	return checkup.NewValidator(a.logger, a.gateway).Validate(ctx)
}

// requireHealthy validates the environment and latches the winning root and
// the registry. Commands that run shell operations call this first. When a
// check fails and stdin is a terminal, the user may fix the environment and
// rerun the battery without restarting the command.
func (a *app) requireHealthy(cmd *cobra.Command) error {
	var prompts *bufio.Reader
	for {
		report := a.validate(cmd.Context())
		failure, ok := report.FirstFailure()
		if !ok {
			a.env = report.Env
			a.registry = brew.NewRegistry(a.logger, a.gateway, a.env)
			return nil
		}
		if !stdinInteractive() {
			return failureError(failure)
		}
		if prompts == nil {
			prompts = bufio.NewReader(cmd.InOrStdin())
		}
		if !promptRetry(cmd.OutOrStdout(), prompts, failure) {
			return failureError(failure)
		}
	}
}

func stdinInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptRetry shows the failure and asks whether to run the battery again.
// Anything but an explicit yes declines.
func promptRetry(out io.Writer, in *bufio.Reader, failure checkup.Result) bool {
	fmt.Fprintln(out, failureError(failure))
	fmt.Fprint(out, "Fix the issue and run the checks again? [y/N] ")
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// buildSwitcher assembles a switcher with the configured services, sinks and
// persistence. Callers append their own presentation and instrumentation
// options.
func (a *app) buildSwitcher(opts ...switcher.Option) (*switcher.Switcher, error) {
	services, err := config.LoadServicesFile(a.cfg.ServicesFile)
	if err != nil {
		return nil, fmt.Errorf("load services file: %w", err)
	}

	base := []switcher.Option{
		switcher.WithServices(services),
		switcher.WithNotifier(a.buildNotifier()),
		switcher.WithStore(state.NewFileStore(a.cfg.StateFile, a.logger)),
	}
	return switcher.New(a.logger, a.gateway, a.registry, a.env, append(base, opts...)...), nil
}

// buildNotifier assembles the notification fan-out from configuration.
func (a *app) buildNotifier() notify.Notifier {
	var sinks []notify.Notifier

	if a.cfg.SlackWebhookURL != "" {
		sinks = append(sinks, notify.NewSlackNotifier(a.logger, a.cfg.SlackWebhookURL))
	}
	if a.cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(a.logger, a.cfg.WebhookURL, a.cfg.WebhookTemplate)
		if err != nil {
			a.logger.Warn().Err(err).Msg("webhook notifier disabled, invalid template")
		} else {
			sinks = append(sinks, webhook)
		}
	}
	if a.cfg.DesktopNotifications {
		sinks = append(sinks, notify.NewDesktopNotifier(a.logger, a.gateway))
	}

	var notifier notify.Notifier
	switch len(sinks) {
	case 0:
		notifier = notify.NewNoop(a.logger, "notifications disabled")
	case 1:
		notifier = sinks[0]
	default:
		notifier = notify.NewMultiNotifier(sinks...)
	}

	if a.cfg.DryRun {
		notifier = notify.NewDryRunNotifier(a.logger, notifier)
	}
	return notifier
}

func failureError(result checkup.Result) error {
	msg := fmt.Sprintf("%s check failed: %s", result.Name, result.Diagnostic)
	if result.Hint != "" {
		msg += " (" + result.Hint + ")"
	}
	return errors.New(msg)
}
