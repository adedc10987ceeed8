package checkup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"phpvm/internal/brew"
)

const (
	sudoersBrew  = "/etc/sudoers.d/brew"
	sudoersValet = "/etc/sudoers.d/valet"
)

type check struct {
	id   string
	name string
	run  func(ctx context.Context, env *brew.Env) Result
}

// battery returns the fixed, ordered check sequence. Order is part of the
// contract: the first existing package-manager root is latched by check one
// and later checks resolve against it.
func (v *Validator) battery() []check {
	return []check{
		{id: CheckBrewBinary, name: "Package manager installed", run: v.checkBrewBinary},
		{id: CheckPhpBinary, name: "PHP binary linked", run: v.checkPhpBinary},
		{id: CheckVersionedPhp, name: "Versioned PHP formula installed", run: v.checkVersionedPhp},
		{id: CheckValetBinary, name: "Site-routing helper installed", run: v.checkValetBinary},
		{id: CheckBrewTrust, name: "Package manager escalation trusted", run: v.checkBrewTrust},
		{id: CheckValetTrust, name: "Routing helper escalation trusted", run: v.checkValetTrust},
		{id: CheckSingleService, name: "Single PHP service active", run: v.checkSingleService},
	}
}

func (v *Validator) checkBrewBinary(_ context.Context, env *brew.Env) Result {
	for _, root := range brew.Roots() {
		bin := filepath.Join(root, "bin", "brew")
		if v.executable(bin) {
			env.Prefix = root
			env.BrewBin = bin
			return Result{Passed: true, Diagnostic: "found " + bin}
		}
	}
	return Result{
		Diagnostic: fmt.Sprintf("no brew binary at %s or %s", brew.RootAppleSilicon, brew.RootIntel),
		Hint:       "install Homebrew from https://brew.sh and re-run",
	}
}

func (v *Validator) checkPhpBinary(_ context.Context, env *brew.Env) Result {
	bin := filepath.Join(env.Prefix, "bin", "php")
	if v.executable(bin) {
		env.PhpBin = bin
		return Result{Passed: true, Diagnostic: "found " + bin}
	}
	return Result{
		Diagnostic: "no linked php binary at " + bin,
		Hint:       "run `brew install php` (or `brew link php` if already installed)",
	}
}

func (v *Validator) checkVersionedPhp(_ context.Context, env *brew.Env) Result {
	matches, err := v.globFn(filepath.Join(env.OptDir(), "php@*"))
	if err != nil {
		return Result{
			Diagnostic: fmt.Sprintf("cannot inspect %s: %v", env.OptDir(), err),
			Hint:       "check permissions on the package root",
		}
	}
	var found []string
	for _, match := range matches {
		series := strings.TrimPrefix(filepath.Base(match), "php@")
		if brew.IsSupported(series) {
			found = append(found, filepath.Base(match))
		}
	}
	if len(found) > 0 {
		return Result{Passed: true, Diagnostic: strings.Join(found, ", ")}
	}
	latest := brew.SupportedVersions[len(brew.SupportedVersions)-1]
	return Result{
		Diagnostic: "no version-tagged php formula under " + env.OptDir(),
		Hint:       fmt.Sprintf("run `brew install php@%s`", latest),
	}
}

func (v *Validator) checkValetBinary(_ context.Context, env *brew.Env) Result {
	candidates := make([]string, 0, 3)
	for _, root := range brew.Roots() {
		candidates = append(candidates, filepath.Join(root, "bin", "valet"))
	}
	if home, err := v.homeFn(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".composer", "vendor", "bin", "valet"))
	}

	for _, bin := range candidates {
		if v.executable(bin) {
			env.ValetBin = bin
			return Result{Passed: true, Diagnostic: "found " + bin}
		}
	}
	return Result{
		Diagnostic: "valet binary not found at " + strings.Join(candidates, ", "),
		Hint:       "run `composer global require laravel/valet && valet install`",
	}
}

func (v *Validator) checkBrewTrust(_ context.Context, _ *brew.Env) Result {
	return v.checkTrustFile(sudoersBrew, "brew trust")
}

func (v *Validator) checkValetTrust(_ context.Context, _ *brew.Env) Result {
	return v.checkTrustFile(sudoersValet, "valet trust")
}

func (v *Validator) checkTrustFile(path, label string) Result {
	if _, err := v.statFn(path); err == nil {
		return Result{Passed: true, Diagnostic: "found " + path}
	}
	return Result{
		Diagnostic: fmt.Sprintf("%s file %s is missing; privileged commands would prompt for a password", label, path),
		Hint:       "run `valet trust` to write the sudoers entries",
	}
}

// checkSingleService detects a stale competing PHP service: more than one
// php-family service reported as started would shadow the intended version.
func (v *Validator) checkSingleService(ctx context.Context, env *brew.Env) Result {
	result, err := v.runner.Run(ctx, env.BrewBin+" services list")
	if err != nil {
		return Result{
			Diagnostic: fmt.Sprintf("cannot inspect services: %v", err),
			Hint:       "verify the package manager can spawn processes",
		}
	}
	if result.ExitCode != 0 {
		return Result{
			Diagnostic: fmt.Sprintf("services listing exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr)),
			Hint:       "run `brew services list` manually and resolve the reported problem",
		}
	}

	started := phpServicesStarted(result.Stdout)
	if len(started) <= 1 {
		return Result{Passed: true, Diagnostic: fmt.Sprintf("%d php service(s) active", len(started))}
	}
	return Result{
		Diagnostic: "multiple PHP services active: " + strings.Join(started, ", "),
		Hint:       fmt.Sprintf("run `brew services stop %s` for the stale entries", started[1]),
	}
}

func phpServicesStarted(listing string) []string {
	var started []string
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, status := fields[0], fields[1]
		if name != "php" && !strings.HasPrefix(name, "php@") {
			continue
		}
		if status == "started" {
			started = append(started, name)
		}
	}
	return started
}

func (v *Validator) executable(path string) bool {
	info, err := v.statFn(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode()&0o111 != 0
}
