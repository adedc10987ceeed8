package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInterpreter = "/bin/sh"
	defaultEscalation  = "sudo"
)

// Result carries the outcome of a single external command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner is the command surface consumed by the registry, the validator and
// the switcher. It is an interface so those components can be exercised with
// scripted fakes.
type Runner interface {
	// Run executes a shell command unprivileged.
	Run(ctx context.Context, command string) (Result, error)

	// RunPrivileged executes a shell command through the escalation wrapper.
	// Callers must ensure escalation is pre-authorized (sudoers trust file);
	// the gateway never prompts interactively.
	RunPrivileged(ctx context.Context, command string) (Result, error)
}

// Gateway executes shell command strings through an interpreter, capturing
// stdout and stderr. A non-zero exit is reported in Result, not as an error;
// the only error a Gateway returns is a *SpawnError for a command that could
// not be started at all. The gateway performs no retries and imposes no
// timeout of its own: a hung external command hangs its caller.
type Gateway struct {
	logger      zerolog.Logger
	interpreter string
	escalation  string
}

// Option customizes Gateway behavior.
type Option func(*Gateway)

// WithInterpreter overrides the shell interpreter (default /bin/sh).
func WithInterpreter(path string) Option {
	return func(g *Gateway) {
		g.interpreter = path
	}
}

// WithEscalation overrides the privilege-escalation wrapper (default sudo).
func WithEscalation(command string) Option {
	return func(g *Gateway) {
		g.escalation = command
	}
}

// New constructs a Gateway.
func New(logger zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		logger:      logger,
		interpreter: defaultInterpreter,
		escalation:  defaultEscalation,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run implements Runner.
func (g *Gateway) Run(ctx context.Context, command string) (Result, error) {
	return g.exec(ctx, command, false)
}

// RunPrivileged implements Runner.
func (g *Gateway) RunPrivileged(ctx context.Context, command string) (Result, error) {
	return g.exec(ctx, command, true)
}

func (g *Gateway) exec(ctx context.Context, command string, privileged bool) (Result, error) {
	full := command
	if privileged {
		full = g.escalation + " " + command
	}

	cmd := exec.CommandContext(ctx, g.interpreter, "-c", full)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			g.logger.Error().Str("command", full).Err(err).Msg("command spawn failed")
			return result, &SpawnError{Command: full, Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	g.logger.Debug().
		Str("command", full).
		Int("exit_code", result.ExitCode).
		Dur("duration", time.Since(start)).
		Msg("command finished")

	return result, nil
}

var _ Runner = (*Gateway)(nil)
