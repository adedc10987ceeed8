//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phpvm/internal/brew"
	"phpvm/internal/logging"
	"phpvm/internal/shell"
	"phpvm/internal/state"
	"phpvm/internal/switcher"
)

// TestIntegrationGatewayAndSwitcher verifies the integration between the
// shell gateway, the version registry and the switcher against a scripted
// package-manager tree: brew, php and valet are small shell scripts that
// record their invocations, and "valet use" rewrites the php shim so the
// post-switch resolution observes the new version.
//
// Prerequisites:
//   - a POSIX shell at /bin/sh
//
// Run with: go test -tags=integration -v ./test/integration/...
func TestIntegrationGatewayAndSwitcher(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skipf("posix shell not available: %v", err)
	}

	prefix := t.TempDir()
	writeTree(t, prefix)

	logger := logging.New()
	// "env" stands in for sudo so privileged steps run without a real
	// escalation wrapper.
	gateway := shell.New(logger, shell.WithEscalation("env"))
	env := brew.Env{
		Prefix:   prefix,
		BrewBin:  filepath.Join(prefix, "bin", "brew"),
		PhpBin:   filepath.Join(prefix, "bin", "php"),
		ValetBin: filepath.Join(prefix, "bin", "valet"),
	}
	registry := brew.NewRegistry(logger, gateway, env)
	ctx := context.Background()

	t.Run("DiscoverVersions", func(t *testing.T) {
		versions, err := registry.DiscoverVersions(ctx)
		if err != nil {
			t.Fatalf("discover versions: %v", err)
		}
		if got, want := strings.Join(versions, ","), "8.1,7.4"; got != want {
			t.Fatalf("versions = %s, want %s", got, want)
		}
	})

	t.Run("ResolveActive", func(t *testing.T) {
		active := registry.ResolveActive(ctx)
		if !active.Valid {
			t.Fatalf("active installation invalid: %s", active.Error)
		}
		if active.Version != "8.1" {
			t.Fatalf("active version = %s, want 8.1", active.Version)
		}
		if active.MemoryLimit != "512M" {
			t.Fatalf("memory limit = %s, want 512M", active.MemoryLimit)
		}
		if len(active.Extensions) != 3 || active.Extensions[0] != "curl" {
			t.Fatalf("extensions = %v, want sorted [curl mbstring pdo_mysql]", active.Extensions)
		}
	})

	statePath := filepath.Join(prefix, "var", "state.json")
	sw := switcher.New(logger, gateway, registry, env,
		switcher.WithStore(state.NewFileStore(statePath, logger)),
	)

	t.Run("SwitchTo", func(t *testing.T) {
		if err := sw.Bootstrap(ctx); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		if err := sw.SwitchTo(ctx, "7.4"); err != nil {
			t.Fatalf("switch: %v", err)
		}

		active := sw.Active()
		if !active.Valid || active.Version != "7.4" {
			t.Fatalf("active after switch = %+v, want valid 7.4", active)
		}

		calls := readLog(t, filepath.Join(prefix, "valet-calls.log"))
		if len(calls) != 1 || calls[0] != "use php@7.4" {
			t.Fatalf("valet calls = %v, want [use php@7.4]", calls)
		}

		data, err := os.ReadFile(statePath)
		if err != nil {
			t.Fatalf("read state file: %v", err)
		}
		var snapshot state.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			t.Fatalf("decode state file: %v", err)
		}
		if snapshot.ActiveVersion != "7.4" || !snapshot.ActiveValid {
			t.Fatalf("persisted snapshot = %+v, want valid 7.4", snapshot)
		}
	})

	t.Run("ForceRecover", func(t *testing.T) {
		if err := sw.ForceRecover(ctx); err != nil {
			t.Fatalf("force recover: %v", err)
		}

		want := []string{
			"services stop dnsmasq",
			"unlink php@8.1",
			"services stop php@8.1",
			"services stop php@8.1",
			"unlink php@7.4",
			"services stop php@7.4",
			"services stop php@7.4",
			"services stop php",
			"services stop nginx",
			"link php --force",
			"services restart dnsmasq",
			"services stop php",
			"services stop nginx",
		}
		calls := readLog(t, filepath.Join(prefix, "brew-calls.log"))
		if len(calls) != len(want) {
			t.Fatalf("brew calls = %v, want %d entries", calls, len(want))
		}
		for i := range want {
			if calls[i] != want[i] {
				t.Fatalf("brew call %d = %q, want %q", i, calls[i], want[i])
			}
		}

		if got := sw.Active(); !got.Valid || got.Version != "7.4" {
			t.Fatalf("active after recovery = %+v, want valid 7.4", got)
		}
	})
}

// writeTree lays out a minimal package-manager prefix: versioned opt
// entries for discovery, a linked php shim, and scripted brew and valet
// binaries that log their arguments.
func writeTree(t *testing.T, prefix string) {
	t.Helper()

	for _, dir := range []string{
		filepath.Join(prefix, "bin"),
		filepath.Join(prefix, "opt", "php@8.1"),
		filepath.Join(prefix, "opt", "php@7.4"),
		filepath.Join(prefix, "opt", "php", "bin"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	writeScript(t, filepath.Join(prefix, "bin", "php"), phpShim("8.1"))
	writeScript(t, filepath.Join(prefix, "opt", "php", "bin", "php"), phpShim("8.1"))
	writeScript(t, filepath.Join(prefix, "bin", "brew"), brewScript)
	writeScript(t, filepath.Join(prefix, "bin", "valet"), valetScript)
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readLog(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// phpShim builds a php stand-in. Version probes get a banner; config-report
// invocations, recognized by the leading -d flag, get the JSON payload the
// real interpreter would print.
func phpShim(series string) string {
	return `#!/bin/sh
case "$1" in
-d)
	printf '{"version":"` + series + `","extensions":["mbstring","curl","pdo_mysql"],"memory_limit":"512M","upload_max_filesize":"64M","post_max_size":"64M"}'
	;;
*)
	echo "PHP ` + series + `.0 (cli) (built: Jan  1 2026 00:00:00) (NTS)"
	;;
esac
`
}

const brewScript = `#!/bin/sh
dir=$(CDPATH= cd -- "$(dirname -- "$0")/.." && pwd)
echo "$*" >> "$dir/brew-calls.log"
if [ "$1" = "services" ] && [ "$2" = "list" ]; then
	printf 'Name    Status  User File\n'
	printf 'php@8.1 started dev  ~/Library/LaunchAgents/homebrew.mxcl.php@8.1.plist\n'
fi
exit 0
`

const valetScript = `#!/bin/sh
dir=$(CDPATH= cd -- "$(dirname -- "$0")/.." && pwd)
echo "$*" >> "$dir/valet-calls.log"
if [ "$1" = "use" ]; then
	series="${2#php@}"
	cat > "$dir/bin/php" <<SHIM
#!/bin/sh
case "\$1" in
-d)
	printf '{"version":"$series","extensions":["mbstring","curl","pdo_mysql"],"memory_limit":"512M","upload_max_filesize":"64M","post_max_size":"64M"}'
	;;
*)
	echo "PHP $series.0 (cli) (built: Jan  1 2026 00:00:00) (NTS)"
	;;
esac
SHIM
	chmod +x "$dir/bin/php"
fi
exit 0
`
