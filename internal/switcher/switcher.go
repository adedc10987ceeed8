// Package switcher orchestrates PHP version switches, periodic environment
// refreshes and service recovery on top of the shell gateway and the version
// registry. All mutations of the shared environment funnel through one busy
// gate so concurrent operations cannot interleave their shell commands.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"phpvm/internal/brew"
	"phpvm/internal/config"
	"phpvm/internal/display"
	"phpvm/internal/healthcheck"
	"phpvm/internal/metrics"
	"phpvm/internal/notify"
	"phpvm/internal/shell"
	"phpvm/internal/state"
)

// ErrBusy is returned when a switch or recovery is requested while another
// one is still in flight. Requests are dropped, never queued.
var ErrBusy = errors.New("another switch or recovery is already in progress")

// Registry is the discovery surface the switcher consumes.
type Registry interface {
	DiscoverVersions(ctx context.Context) (brew.VersionSet, error)
	ResolveActive(ctx context.Context) brew.Installation
}

// Switcher owns the mutable runtime picture (active installation, installed
// versions, busy flag) and the operations that change it. The picture is
// replaced wholesale on every resolve; nothing is patched in place.
type Switcher struct {
	logger   zerolog.Logger
	runner   shell.Runner
	registry Registry
	env      brew.Env
	services []config.ServiceDescriptor

	publisher *display.Publisher
	notifier  notify.Notifier
	store     state.Store
	metrics   *metrics.Metrics
	tracker   *healthcheck.Tracker

	// onRearm is invoked after the active installation changes so the config
	// watcher can re-target the new version's files.
	onRearm func(brew.Installation)

	busy atomic.Bool

	mu       sync.Mutex
	target   string
	active   brew.Installation
	versions brew.VersionSet
}

// Option customizes Switcher wiring.
type Option func(*Switcher)

// WithServices overrides the managed service descriptors.
func WithServices(services []config.ServiceDescriptor) Option {
	return func(s *Switcher) {
		if len(services) > 0 {
			s.services = services
		}
	}
}

// WithPublisher wires the presentation publisher.
func WithPublisher(publisher *display.Publisher) Option {
	return func(s *Switcher) {
		s.publisher = publisher
	}
}

// WithNotifier wires the notification sink.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Switcher) {
		s.notifier = notifier
	}
}

// WithStore wires snapshot persistence.
func WithStore(store state.Store) Option {
	return func(s *Switcher) {
		s.store = store
	}
}

// WithMetrics wires Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Switcher) {
		s.metrics = m
	}
}

// WithTracker wires the health tracker fed on each refresh.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(s *Switcher) {
		s.tracker = tracker
	}
}

// WithRearmHook registers a callback invoked whenever the active installation
// changes version. The callback runs on the operation's goroutine.
func WithRearmHook(hook func(brew.Installation)) Option {
	return func(s *Switcher) {
		s.onRearm = hook
	}
}

// New constructs a Switcher. The service set defaults to the built-in
// descriptors; publisher, notifier, store, metrics and tracker are optional.
func New(logger zerolog.Logger, runner shell.Runner, registry Registry, env brew.Env, opts ...Option) *Switcher {
	s := &Switcher{
		logger:   logger,
		runner:   runner,
		registry: registry,
		env:      env,
		services: config.DefaultServices(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap performs the initial discovery pass: load any persisted snapshot,
// discover installed versions, resolve the active installation, and flag a
// version change that happened while nothing was running. A discovery spawn
// failure is fatal; everything downstream needs the version set.
func (s *Switcher) Bootstrap(ctx context.Context) error {
	var stored state.Snapshot
	if s.store != nil {
		loaded, err := s.store.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("persisted state unavailable, starting fresh")
		} else {
			stored = loaded
		}
	}

	versions, err := s.registry.DiscoverVersions(ctx)
	if err != nil {
		return fmt.Errorf("discover installed versions: %w", err)
	}
	s.setVersions(versions)
	s.metrics.SetInstalledVersions(len(versions))

	active := s.registry.ResolveActive(ctx)
	s.replaceActive(active)

	if stored.ActiveVersion != "" && active.Valid && stored.ActiveVersion != active.Version {
		s.notifyEvent(ctx, notify.Event{
			Kind:     notify.KindExternalChange,
			Title:    "PHP version changed externally",
			Body:     fmt.Sprintf("Active version went from PHP %s to PHP %s while nothing was running", stored.ActiveVersion, active.Version),
			Version:  active.Version,
			Previous: stored.ActiveVersion,
			At:       time.Now().UTC(),
		})
	}

	s.publishState()
	s.persist(ctx)
	s.rearm(active)

	s.logger.Info().
		Strs("versions", []string(versions)).
		Str("active", activeLabel(active)).
		Msg("environment discovered")

	return nil
}

// SwitchTo routes the environment to the given PHP series. While the switch
// runs, the busy flag is up and a transitional state carrying the target is
// published. The switch command's own exit code is never surfaced to the
// caller: whatever state the environment lands in is re-resolved and
// reported, so a failed handover shows up as a degraded outcome rather than
// an error. Only a command that could not be spawned at all aborts early.
func (s *Switcher) SwitchTo(ctx context.Context, version string) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug().Str("version", version).Msg("switch dropped, busy")
		return ErrBusy
	}
	s.metrics.SetBusy(true)
	s.setTarget(version)
	s.publishState()

	previous := s.registry.ResolveActive(ctx)

	result, err := s.runner.Run(ctx, s.useCommand(version))
	if err != nil {
		s.metrics.IncSpawnErrors()
		s.metrics.IncSwitches("spawn-error")
		s.logger.Error().Err(err).Str("version", version).Msg("switch command could not be started")
		s.setTarget("")
		s.busy.Store(false)
		s.metrics.SetBusy(false)
		s.publishState()
		return fmt.Errorf("switch to %s: %w", version, err)
	}
	if result.ExitCode != 0 {
		s.logger.Warn().
			Int("exit_code", result.ExitCode).
			Str("version", version).
			Str("stderr", strings.TrimSpace(result.Stderr)).
			Msg("switch command exited non-zero, reporting actual state")
	}

	active := s.registry.ResolveActive(ctx)
	changed := s.replaceActive(active)

	s.setTarget("")
	s.busy.Store(false)
	s.metrics.SetBusy(false)

	s.publishState()
	s.persist(ctx)
	if changed {
		s.rearm(active)
	}

	if active.Valid && active.Version == version {
		s.metrics.IncSwitches("success")
		s.notifyEvent(ctx, notify.Event{
			Kind:     notify.KindSwitchCompleted,
			Title:    "PHP version switched",
			Body:     fmt.Sprintf("Now serving PHP %s", active.Version),
			Version:  active.Version,
			Previous: previous.Version,
			At:       time.Now().UTC(),
		})
		return nil
	}

	s.metrics.IncSwitches("degraded")
	s.notifyEvent(ctx, degradedEvent(version, previous, active))
	return nil
}

// Refresh re-resolves the active installation and reconciles the version set.
// It deliberately does not take the busy gate: a refresh observes, it does
// not mutate, and a poll firing mid-switch must not be dropped. External
// version changes are only announced when the flag is down, so a switch's
// own transition is not double-reported.
func (s *Switcher) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	active := s.registry.ResolveActive(ctx)
	previous, changed := s.swapActive(active)

	versions := s.Versions()
	if len(versions) == 0 || (active.Valid && !versions.Contains(active.Version)) {
		discovered, err := s.registry.DiscoverVersions(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("version rediscovery failed, keeping previous set")
		} else {
			s.setVersions(discovered)
			s.metrics.SetInstalledVersions(len(discovered))
		}
	}

	if changed && !s.busy.Load() && previous.Valid && active.Valid {
		s.logger.Info().
			Str("previous", previous.Version).
			Str("active", active.Version).
			Msg("active version changed outside a switch")
		s.notifyEvent(ctx, notify.Event{
			Kind:     notify.KindExternalChange,
			Title:    "PHP version changed externally",
			Body:     fmt.Sprintf("Active version went from PHP %s to PHP %s outside a switch", previous.Version, active.Version),
			Version:  active.Version,
			Previous: previous.Version,
			At:       time.Now().UTC(),
		})
	}

	s.publishState()
	s.persist(ctx)
	if changed {
		s.rearm(active)
	}

	duration := time.Since(start)
	s.metrics.ObserveRefreshDuration(duration)
	s.metrics.SetLastSuccessfulRefreshTimestamp(time.Now().UTC())
	s.tracker.RecordRefresh(duration, activeLabel(active), len(s.Versions()))

	return nil
}

// Busy reports whether a switch or recovery is in flight.
func (s *Switcher) Busy() bool {
	return s.busy.Load()
}

// Active returns the last resolved active installation.
func (s *Switcher) Active() brew.Installation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Versions returns a copy of the current version set.
func (s *Switcher) Versions() brew.VersionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(brew.VersionSet(nil), s.versions...)
}

func (s *Switcher) useCommand(version string) string {
	return s.env.ValetBin + " use " + brew.Formula(version)
}

// replaceActive stores the installation and reports whether the version
// changed.
func (s *Switcher) replaceActive(active brew.Installation) bool {
	_, changed := s.swapActive(active)
	return changed
}

func (s *Switcher) swapActive(active brew.Installation) (brew.Installation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.active
	s.active = active
	return previous, previous.Version != active.Version
}

func (s *Switcher) setVersions(versions brew.VersionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = versions
}

func (s *Switcher) setTarget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
}

// publishState assembles the presentation snapshot under the lock and hands
// it to the publisher. This is the only place display.State is built, so
// every renderer sees the same picture.
func (s *Switcher) publishState() {
	s.mu.Lock()
	st := display.State{
		Busy:     s.busy.Load(),
		Target:   s.target,
		Active:   s.active,
		Versions: append([]string(nil), s.versions...),
	}
	s.mu.Unlock()
	s.publisher.Publish(st)
}

func (s *Switcher) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snapshot := state.Snapshot{
		ActiveVersion: s.active.Version,
		ActiveValid:   s.active.Valid,
		Versions:      append([]string(nil), s.versions...),
		UpdatedAt:     time.Now().UTC(),
	}
	s.mu.Unlock()
	if err := s.store.Save(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("state persistence failed")
	}
}

// notifyEvent delivers best-effort: a sink failure is logged, never
// propagated into the operation's outcome.
func (s *Switcher) notifyEvent(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("kind", event.Kind).Msg("notification delivery failed")
	}
}

func (s *Switcher) rearm(active brew.Installation) {
	if s.onRearm == nil {
		return
	}
	s.onRearm(active)
}

func (s *Switcher) formulaByRole(role string) string {
	for _, svc := range s.services {
		if svc.Role == role {
			return svc.Formula
		}
	}
	return ""
}

func degradedEvent(requested string, previous, active brew.Installation) notify.Event {
	body := fmt.Sprintf("Requested PHP %s but the active installation is broken", requested)
	if active.Valid {
		body = fmt.Sprintf("Requested PHP %s but PHP %s is active", requested, active.Version)
	}
	return notify.Event{
		Kind:     notify.KindSwitchDegraded,
		Title:    "PHP switch did not complete",
		Body:     body,
		Version:  active.Version,
		Previous: previous.Version,
		At:       time.Now().UTC(),
	}
}

func activeLabel(installation brew.Installation) string {
	if installation.Valid {
		return installation.Version
	}
	return "unknown"
}
