package brew

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"phpvm/internal/shell"
)

const formulaPrefix = "php@"

// versionBanner matches the first line of `php -v` output.
var versionBanner = regexp.MustCompile(`PHP (\d+)\.(\d+)`)

// Registry discovers installed PHP versions and resolves the active one
// through the command gateway. It holds no mutable state of its own.
type Registry struct {
	logger zerolog.Logger
	runner shell.Runner
	env    Env
}

// NewRegistry constructs a Registry bound to a validated environment.
func NewRegistry(logger zerolog.Logger, runner shell.Runner, env Env) *Registry {
	return &Registry{
		logger: logger,
		runner: runner,
		env:    env,
	}
}

// DiscoverVersions lists version-tagged formulas under the package root,
// filters them against the allow-list, deduplicates, and appends the
// default-alias series when the listing missed it. The returned set is never
// missing the alias series; listing order does not affect the result.
func (r *Registry) DiscoverVersions(ctx context.Context) (VersionSet, error) {
	result, err := r.runner.Run(ctx, fmt.Sprintf("ls -1 %s", r.env.OptDir()))
	if err != nil {
		return nil, fmt.Errorf("list package root: %w", err)
	}

	seen := make(map[string]bool)
	var versions []string
	if result.ExitCode == 0 {
		for _, line := range strings.Split(result.Stdout, "\n") {
			name := strings.TrimSpace(line)
			if !strings.HasPrefix(name, formulaPrefix) {
				continue
			}
			series := strings.TrimPrefix(name, formulaPrefix)
			if !IsSupported(series) || seen[series] {
				continue
			}
			seen[series] = true
			versions = append(versions, series)
		}
	} else {
		r.logger.Warn().
			Str("dir", r.env.OptDir()).
			Str("stderr", strings.TrimSpace(result.Stderr)).
			Msg("package root listing failed, relying on alias probe")
	}

	alias, err := r.ResolveAlias(ctx)
	if err != nil {
		var spawnErr *shell.SpawnError
		if errors.As(err, &spawnErr) {
			return nil, err
		}
		r.logger.Debug().Err(err).Msg("default alias not resolvable")
	} else if !seen[alias] {
		versions = append(versions, alias)
	}

	sortDescending(versions)
	return VersionSet(versions), nil
}

// ResolveActive probes the currently linked binary and parses its version
// banner. It never returns an absent value: on any probe or parse failure the
// installation comes back with Valid=false and a diagnostic, so callers
// always have a stable object to render. Callers must check Valid before
// trusting the version fields.
func (r *Registry) ResolveActive(ctx context.Context) Installation {
	result, err := r.runner.Run(ctx, r.env.PhpBin+" -v")
	if err != nil {
		return Installation{
			BinaryPath: r.env.PhpBin,
			Valid:      false,
			Error:      err.Error(),
		}
	}
	if result.ExitCode != 0 {
		return Installation{
			BinaryPath: r.env.PhpBin,
			Valid:      false,
			Error:      fmt.Sprintf("version probe exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr)),
		}
	}

	series, ok := parseBanner(result.Stdout)
	if !ok {
		return Installation{
			BinaryPath: r.env.PhpBin,
			Valid:      false,
			Error:      "unrecognized version banner",
		}
	}

	inst := Installation{
		Version:    series,
		Formula:    formulaPrefix + series,
		BinaryPath: r.env.PhpBin,
		Valid:      true,
	}

	report, err := r.configReport(ctx)
	if err != nil {
		// Metadata enrichment is best-effort; a parsed version stays valid.
		r.logger.Debug().Err(err).Msg("configuration report unavailable")
		return inst
	}
	inst.Extensions = report.Extensions
	inst.MemoryLimit = report.MemoryLimit
	inst.MaxUploadSize = report.UploadMaxFilesize
	inst.MaxPostSize = report.PostMaxSize
	return inst
}

// ResolveAlias probes the unversioned formula's own binary for the series the
// default alias currently points to.
func (r *Registry) ResolveAlias(ctx context.Context) (string, error) {
	result, err := r.runner.Run(ctx, r.env.AliasBin()+" -v")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("alias probe exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	series, ok := parseBanner(result.Stdout)
	if !ok {
		return "", errors.New("unrecognized alias version banner")
	}
	return series, nil
}

func parseBanner(output string) (string, bool) {
	match := versionBanner.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	return match[1] + "." + match[2], true
}
