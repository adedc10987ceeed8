// Package watcher observes the active PHP installation's configuration
// files and reports edits. Raw filesystem events are deduplicated by a
// content fingerprint, so an editor's write storm (temp file, rename,
// chmod) collapses into a single change.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"phpvm/internal/brew"
)

// Watcher tracks one PHP series' php.ini and conf.d fragments at a time.
// Rearm re-targets it when the active installation changes.
type Watcher struct {
	logger   zerolog.Logger
	env      brew.Env
	onChange func(version string)

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	version  string
	watched  []string
	lastHash string
}

// New constructs a Watcher. The callback runs on the watch goroutine and is
// invoked once per effective configuration change.
func New(logger zerolog.Logger, env brew.Env, onChange func(version string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		logger:   logger,
		env:      env,
		onChange: onChange,
		fsw:      fsw,
	}, nil
}

// Rearm points the watcher at the given installation's configuration paths,
// dropping whatever it watched before. An invalid installation disarms the
// watcher; missing directories are skipped. The current content fingerprint
// becomes the new baseline, so the act of rearming never reports a change.
func (w *Watcher) Rearm(installation brew.Installation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.watched {
		_ = w.fsw.Remove(path)
	}
	w.watched = nil
	w.version = ""
	w.lastHash = ""

	if !installation.Valid || installation.Version == "" {
		w.logger.Debug().Msg("config watch disarmed, no valid installation")
		return
	}

	w.version = installation.Version
	candidates := []string{
		filepath.Dir(w.env.ConfigFile(installation.Version)),
		w.env.ConfigFragmentDir(installation.Version),
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("config watch registration failed")
			continue
		}
		w.watched = append(w.watched, path)
	}
	w.lastHash = w.fingerprintLocked()

	w.logger.Debug().
		Str("version", w.version).
		Strs("paths", w.watched).
		Msg("config watch armed")
}

// Run consumes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("config watcher stopped")
			return w.fsw.Close()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watch error")
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !strings.HasSuffix(event.Name, ".ini") {
		return
	}

	w.mu.Lock()
	version := w.version
	previous := w.lastHash
	current := w.fingerprintLocked()
	w.lastHash = current
	w.mu.Unlock()

	if version == "" || current == previous {
		return
	}

	w.logger.Info().
		Str("version", version).
		Str("path", event.Name).
		Msg("configuration changed")

	if w.onChange != nil {
		w.onChange(version)
	}
}

// fingerprintLocked hashes the watched series' php.ini and conf.d fragments.
// Unreadable files simply contribute nothing, so a file disappearing changes
// the fingerprint the same way an edit does.
func (w *Watcher) fingerprintLocked() string {
	if w.version == "" {
		return ""
	}

	paths := []string{w.env.ConfigFile(w.version)}
	fragments, err := filepath.Glob(filepath.Join(w.env.ConfigFragmentDir(w.version), "*.ini"))
	if err == nil {
		paths = append(paths, fragments...)
	}

	h := sha256.New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
