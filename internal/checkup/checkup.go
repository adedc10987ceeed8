package checkup

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"phpvm/internal/brew"
	"phpvm/internal/shell"
)

// Check identifiers, in declared battery order.
const (
	CheckBrewBinary    = "brew-binary"
	CheckPhpBinary     = "php-binary"
	CheckVersionedPhp  = "versioned-php"
	CheckValetBinary   = "valet-binary"
	CheckBrewTrust     = "brew-trust"
	CheckValetTrust    = "valet-trust"
	CheckSingleService = "single-php-service"
)

// Result is the outcome of one environment check.
type Result struct {
	ID         string
	Name       string
	Passed     bool
	Diagnostic string
	Hint       string
}

// Report is an ordered battery run. The battery halts at the first failure,
// so Results holds every executed check and the failing one, if any, is last.
// Env is populated only when every check passed.
type Report struct {
	Results []Result
	Env     brew.Env
}

// OK reports whether every executed check passed.
func (r Report) OK() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first failing check in declared order.
func (r Report) FirstFailure() (Result, bool) {
	for _, res := range r.Results {
		if !res.Passed {
			return res, true
		}
	}
	return Result{}, false
}

// Validator runs the fixed startup battery. Filesystem probes are injectable
// so the battery can be exercised without a real package-manager tree.
type Validator struct {
	logger zerolog.Logger
	runner shell.Runner

	statFn func(string) (os.FileInfo, error)
	globFn func(string) ([]string, error)
	homeFn func() (string, error)
}

// Option customizes Validator behavior.
type Option func(*Validator)

// WithStat overrides the stat probe.
func WithStat(fn func(string) (os.FileInfo, error)) Option {
	return func(v *Validator) {
		v.statFn = fn
	}
}

// WithGlob overrides the directory glob probe.
func WithGlob(fn func(string) ([]string, error)) Option {
	return func(v *Validator) {
		v.globFn = fn
	}
}

// WithHome overrides home-directory resolution.
func WithHome(fn func() (string, error)) Option {
	return func(v *Validator) {
		v.homeFn = fn
	}
}

// NewValidator constructs a Validator.
func NewValidator(logger zerolog.Logger, runner shell.Runner, opts ...Option) *Validator {
	v := &Validator{
		logger: logger,
		runner: runner,
		statFn: os.Stat,
		globFn: filepath.Glob,
		homeFn: os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the battery in declared order and halts at the first failing
// check. On success the returned report carries the latched environment;
// downstream components treat it as read-only for the rest of the run.
func (v *Validator) Validate(ctx context.Context) Report {
	var report Report
	var env brew.Env

	for _, c := range v.battery() {
		result := c.run(ctx, &env)
		result.ID = c.id
		result.Name = c.name
		report.Results = append(report.Results, result)
		if !result.Passed {
			v.logger.Warn().
				Str("check", c.id).
				Str("diagnostic", result.Diagnostic).
				Msg("environment check failed")
			return report
		}
		v.logger.Debug().Str("check", c.id).Msg("environment check passed")
	}

	report.Env = env
	return report
}

// ValidateAsync runs the battery on a background goroutine and delivers the
// outcome through exactly one of the callbacks. Validation is kept off the
// caller's goroutine because a failure must offer a retry before anything
// else initializes.
func (v *Validator) ValidateAsync(ctx context.Context, onPass func(brew.Env), onFail func(Report)) {
	go func() {
		report := v.Validate(ctx)
		if report.OK() {
			onPass(report.Env)
			return
		}
		onFail(report)
	}()
}
