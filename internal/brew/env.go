package brew

import "path/filepath"

// Known package-manager roots, probed in order: Apple silicon first,
// Intel/legacy second. The first existing root wins.
const (
	RootAppleSilicon = "/opt/homebrew"
	RootIntel        = "/usr/local"
)

// Roots returns the candidate roots in probe order.
func Roots() []string {
	return []string{RootAppleSilicon, RootIntel}
}

// Env is the process-wide environment latched by startup validation: the
// winning package-manager root and the binaries resolved beneath it. It is
// immutable after construction and handed to every downstream component;
// re-validation happens only on an explicit retry, never per operation.
type Env struct {
	Prefix   string // package-manager root, e.g. /opt/homebrew
	BrewBin  string // package-manager binary
	PhpBin   string // currently linked PHP binary
	ValetBin string // site-routing helper binary
}

// OptDir is the package root holding one entry per installed formula.
func (e Env) OptDir() string {
	return filepath.Join(e.Prefix, "opt")
}

// AliasBin is the default-alias formula's own PHP binary, independent of
// whichever version is currently linked.
func (e Env) AliasBin() string {
	return filepath.Join(e.OptDir(), "php", "bin", "php")
}

// ConfigFile is the main configuration file for a PHP series.
func (e Env) ConfigFile(version string) string {
	return filepath.Join(e.Prefix, "etc", "php", version, "php.ini")
}

// ConfigFragmentDir is the companion fragment directory for a PHP series.
func (e Env) ConfigFragmentDir(version string) string {
	return filepath.Join(e.Prefix, "etc", "php", version, "conf.d")
}
