package brew

import (
	"sort"
	"strconv"
	"strings"
)

// Installation describes one resolved PHP installation. Values are built
// fresh on every discovery pass and never mutated afterwards; a later pass
// supersedes the whole value.
type Installation struct {
	Version       string   // series, e.g. "8.1"
	Formula       string   // formula name, e.g. "php@8.1"
	BinaryPath    string   // binary the probe ran
	Extensions    []string // loaded extensions, sorted
	MemoryLimit   string   // e.g. "512M"
	MaxUploadSize string   // upload_max_filesize
	MaxPostSize   string   // post_max_size
	Valid         bool     // false when version detection failed
	Error         string   // diagnostic when Valid is false
}

// Formula returns the versioned formula name for a series, e.g. "php@8.1".
func Formula(version string) string {
	return formulaPrefix + version
}

// VersionSet is the ordered, deduplicated list of installed PHP series,
// newest first. It is rebuilt wholesale on each discovery and always
// contains the resolved default-alias series.
type VersionSet []string

// Contains reports whether the set includes the given series.
func (s VersionSet) Contains(version string) bool {
	for _, v := range s {
		if v == version {
			return true
		}
	}
	return false
}

// SupportedVersions is the fixed allow-list of PHP series the tool manages.
// Listing output is filtered against it so unrelated opt entries (php@publish
// style taps, partial installs) never leak into the set.
var SupportedVersions = []string{
	"5.6",
	"7.0", "7.1", "7.2", "7.3", "7.4",
	"8.0", "8.1", "8.2", "8.3", "8.4", "8.5",
}

// IsSupported reports whether the series is on the allow-list.
func IsSupported(version string) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}

// sortDescending orders series newest first ("8.1" before "7.4").
func sortDescending(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return compareSeries(versions[i], versions[j]) > 0
	})
}

func compareSeries(a, b string) int {
	aMajor, aMinor := splitSeries(a)
	bMajor, bMinor := splitSeries(b)
	if aMajor != bMajor {
		return aMajor - bMajor
	}
	return aMinor - bMinor
}

func splitSeries(series string) (int, int) {
	parts := strings.SplitN(series, ".", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	major, _ := strconv.Atoi(parts[0])
	minor, _ := strconv.Atoi(parts[1])
	return major, minor
}
