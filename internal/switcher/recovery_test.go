package switcher

import (
	"context"
	"errors"
	"testing"

	"phpvm/internal/config"
	"phpvm/internal/notify"
	"phpvm/internal/shell"
)

func TestForceRecoverRunsChainInOrder(t *testing.T) {
	h := newHarness(t)
	if err := h.switcher.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned %v", err)
	}

	if err := h.switcher.ForceRecover(context.Background()); err != nil {
		t.Fatalf("ForceRecover returned %v", err)
	}

	want := []call{
		{command: "/opt/homebrew/bin/brew services stop dnsmasq", privileged: true},
		{command: "/opt/homebrew/bin/brew unlink php@8.1"},
		{command: "/opt/homebrew/bin/brew services stop php@8.1"},
		{command: "/opt/homebrew/bin/brew services stop php@8.1", privileged: true},
		{command: "/opt/homebrew/bin/brew unlink php@7.4"},
		{command: "/opt/homebrew/bin/brew services stop php@7.4"},
		{command: "/opt/homebrew/bin/brew services stop php@7.4", privileged: true},
		{command: "/opt/homebrew/bin/brew services stop php"},
		{command: "/opt/homebrew/bin/brew services stop nginx"},
		{command: "/opt/homebrew/bin/brew link php --force"},
		{command: "/opt/homebrew/bin/brew services restart dnsmasq", privileged: true},
		{command: "/opt/homebrew/bin/brew services stop php", privileged: true},
		{command: "/opt/homebrew/bin/brew services stop nginx", privileged: true},
	}

	got := h.runner.recorded()
	if len(got) != len(want) {
		t.Fatalf("recovery ran %d commands, want %d:\n%v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recovery step %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if h.switcher.Busy() {
		t.Fatal("busy flag still up after recovery")
	}
	events := h.notifier.recorded()
	if len(events) != 1 || events[0].Kind != notify.KindRecoveryDone {
		t.Fatalf("events = %v, want one recovery-completed", h.notifier.kinds())
	}
}

func TestForceRecoverContinuesPastFailedSteps(t *testing.T) {
	h := newHarness(t)
	if err := h.switcher.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned %v", err)
	}

	// Stopping an already stopped service exits non-zero; the chain must not
	// stop there.
	h.runner.respond = func(string, bool) (shell.Result, error) {
		return shell.Result{ExitCode: 1, Stderr: "Error: Service not started"}, nil
	}

	if err := h.switcher.ForceRecover(context.Background()); err != nil {
		t.Fatalf("ForceRecover returned %v", err)
	}
	if got := len(h.runner.recorded()); got != 13 {
		t.Fatalf("recovery ran %d commands, want all 13", got)
	}
	if h.switcher.Busy() {
		t.Fatal("busy flag still up after recovery")
	}
}

func TestForceRecoverSpawnErrorAbortsChain(t *testing.T) {
	h := newHarness(t)
	if err := h.switcher.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned %v", err)
	}

	spawn := &shell.SpawnError{Command: "brew unlink php@8.1", Err: errors.New("fork failed")}
	h.runner.respond = func(command string, _ bool) (shell.Result, error) {
		if command == "/opt/homebrew/bin/brew unlink php@8.1" {
			return shell.Result{}, spawn
		}
		return shell.Result{}, nil
	}

	err := h.switcher.ForceRecover(context.Background())
	if err == nil {
		t.Fatal("expected an error for a spawn failure")
	}
	var spawnErr *shell.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error %v does not wrap the spawn error", err)
	}

	// The chain stops at the failed step.
	if got := len(h.runner.recorded()); got != 2 {
		t.Fatalf("recovery ran %d commands before aborting, want 2", got)
	}
	if h.switcher.Busy() {
		t.Fatal("busy flag still up after aborted recovery")
	}
	if len(h.notifier.recorded()) != 0 {
		t.Fatalf("unexpected events after aborted recovery: %v", h.notifier.kinds())
	}
}

func TestForceRecoverSharesBusyGate(t *testing.T) {
	h := newHarness(t)
	if err := h.switcher.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	h.runner.respond = func(string, bool) (shell.Result, error) {
		close(started)
		<-release
		return shell.Result{}, nil
	}

	done := make(chan error, 1)
	go func() { done <- h.switcher.SwitchTo(context.Background(), "8.1") }()
	<-started

	if err := h.switcher.ForceRecover(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("ForceRecover during a switch returned %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SwitchTo returned %v", err)
	}
}

func TestForceRecoverDiscoversWhenVersionSetEmpty(t *testing.T) {
	h := newHarness(t)

	if err := h.switcher.ForceRecover(context.Background()); err != nil {
		t.Fatalf("ForceRecover returned %v", err)
	}

	if got := h.registry.discoveries(); got != 1 {
		t.Fatalf("discovery ran %d times, want 1", got)
	}
	var sawUnlink bool
	for _, c := range h.runner.recorded() {
		if c.command == "/opt/homebrew/bin/brew unlink php@8.1" {
			sawUnlink = true
		}
	}
	if !sawUnlink {
		t.Fatal("chain did not cover the freshly discovered version set")
	}
}

func TestForceRecoverSkipsRolesAbsentFromServices(t *testing.T) {
	services := []config.ServiceDescriptor{
		{Name: "php", Formula: "php", Role: config.RolePHP},
	}
	h := newHarness(t, WithServices(services))
	if err := h.switcher.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned %v", err)
	}

	if err := h.switcher.ForceRecover(context.Background()); err != nil {
		t.Fatalf("ForceRecover returned %v", err)
	}

	for i, c := range h.runner.recorded() {
		switch c.command {
		case "/opt/homebrew/bin/brew services stop dnsmasq",
			"/opt/homebrew/bin/brew services restart dnsmasq",
			"/opt/homebrew/bin/brew services stop nginx":
			t.Fatalf("step %d touches a service with no descriptor: %+v", i, c)
		}
	}
}
