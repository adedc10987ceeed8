package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"phpvm/internal/brew"
)

type changeRecorder struct {
	mu       sync.Mutex
	versions []string
	ch       chan string
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{ch: make(chan string, 8)}
}

func (r *changeRecorder) record(version string) {
	r.mu.Lock()
	r.versions = append(r.versions, version)
	r.mu.Unlock()
	r.ch <- version
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.versions)
}

func (r *changeRecorder) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.versions) == 0 {
		return ""
	}
	return r.versions[0]
}

func writeConfig(t *testing.T, prefix, version, content string) string {
	t.Helper()
	dir := filepath.Join(prefix, "etc", "php", version)
	if err := os.MkdirAll(filepath.Join(dir, "conf.d"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "php.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write php.ini: %v", err)
	}
	return path
}

func installation(version string) brew.Installation {
	return brew.Installation{Version: version, Formula: "php@" + version, Valid: true}
}

func TestHandleEventReportsContentChange(t *testing.T) {
	prefix := t.TempDir()
	iniPath := writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))

	if err := os.WriteFile(iniPath, []byte("memory_limit = 512M\n"), 0o644); err != nil {
		t.Fatalf("rewrite php.ini: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: iniPath, Op: fsnotify.Write})

	if got := recorder.count(); got != 1 {
		t.Fatalf("recorded %d changes, want 1", got)
	}
	if version := recorder.first(); version != "8.1" {
		t.Fatalf("change reported for %q, want 8.1", version)
	}
}

func TestHandleEventDeduplicatesUnchangedContent(t *testing.T) {
	prefix := t.TempDir()
	iniPath := writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))

	// A write event without a content change, as editors produce when
	// saving an unmodified buffer.
	w.handleEvent(fsnotify.Event{Name: iniPath, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: iniPath, Op: fsnotify.Write})

	if got := recorder.count(); got != 0 {
		t.Fatalf("recorded %d changes for identical content, want 0", got)
	}
}

func TestHandleEventIgnoresUnrelatedFiles(t *testing.T) {
	prefix := t.TempDir()
	writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))

	swap := filepath.Join(prefix, "etc", "php", "8.1", ".php.ini.swp")
	if err := os.WriteFile(swap, []byte("scratch"), 0o644); err != nil {
		t.Fatalf("write swap file: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: swap, Op: fsnotify.Write})

	if got := recorder.count(); got != 0 {
		t.Fatalf("recorded %d changes for an unrelated file, want 0", got)
	}
}

func TestHandleEventSeesFragmentChanges(t *testing.T) {
	prefix := t.TempDir()
	writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))

	fragment := filepath.Join(prefix, "etc", "php", "8.1", "conf.d", "ext-xdebug.ini")
	if err := os.WriteFile(fragment, []byte("zend_extension = xdebug.so\n"), 0o644); err != nil {
		t.Fatalf("write fragment: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: fragment, Op: fsnotify.Create})

	if got := recorder.count(); got != 1 {
		t.Fatalf("recorded %d changes, want 1", got)
	}
}

func TestRearmSwitchesWatchedVersion(t *testing.T) {
	prefix := t.TempDir()
	oldIni := writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")
	newIni := writeConfig(t, prefix, "7.4", "memory_limit = 256M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))
	w.Rearm(installation("7.4"))

	// Edits to the previously watched series are stale and must not fire.
	if err := os.WriteFile(oldIni, []byte("memory_limit = 1G\n"), 0o644); err != nil {
		t.Fatalf("rewrite old php.ini: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: oldIni, Op: fsnotify.Write})
	if got := recorder.count(); got != 0 {
		t.Fatalf("recorded %d changes for the stale series, want 0", got)
	}

	if err := os.WriteFile(newIni, []byte("memory_limit = 512M\n"), 0o644); err != nil {
		t.Fatalf("rewrite new php.ini: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: newIni, Op: fsnotify.Write})
	if got := recorder.count(); got != 1 {
		t.Fatalf("recorded %d changes for the active series, want 1", got)
	}
	if version := recorder.first(); version != "7.4" {
		t.Fatalf("change reported for %q, want 7.4", version)
	}
}

func TestRearmDisarmsOnInvalidInstallation(t *testing.T) {
	prefix := t.TempDir()
	iniPath := writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	w.Rearm(installation("8.1"))
	w.Rearm(brew.Installation{Error: "version probe failed"})

	if err := os.WriteFile(iniPath, []byte("memory_limit = 512M\n"), 0o644); err != nil {
		t.Fatalf("rewrite php.ini: %v", err)
	}
	w.handleEvent(fsnotify.Event{Name: iniPath, Op: fsnotify.Write})

	if got := recorder.count(); got != 0 {
		t.Fatalf("recorded %d changes while disarmed, want 0", got)
	}
}

func TestRearmSkipsMissingDirectories(t *testing.T) {
	prefix := t.TempDir()

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer w.Close()

	// No etc/php tree exists for the series; arming must not fail.
	w.Rearm(installation("8.3"))

	w.mu.Lock()
	watched := len(w.watched)
	w.mu.Unlock()
	if watched != 0 {
		t.Fatalf("watching %d paths for a missing tree, want 0", watched)
	}
}

func TestRunDeliversFilesystemEvents(t *testing.T) {
	prefix := t.TempDir()
	iniPath := writeConfig(t, prefix, "8.1", "memory_limit = 128M\n")

	recorder := newChangeRecorder()
	w, err := New(zerolog.Nop(), brew.Env{Prefix: prefix}, recorder.record)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}

	w.Rearm(installation("8.1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	if err := os.WriteFile(iniPath, []byte("memory_limit = 512M\n"), 0o644); err != nil {
		t.Fatalf("rewrite php.ini: %v", err)
	}

	select {
	case version := <-recorder.ch:
		if version != "8.1" {
			t.Fatalf("change reported for %q, want 8.1", version)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered for a real write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
