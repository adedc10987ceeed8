package healthcheck

import (
	"sync"
	"time"
)

// Snapshot describes the latest refresh timing details.
type Snapshot struct {
	LastRefreshTime    *time.Time `json:"last_refresh_time"`
	RefreshDurationMS  int64      `json:"refresh_duration_ms"`
	ActiveVersion      string     `json:"active_version"`
	VersionsDiscovered int        `json:"versions_discovered"`
}

// Tracker records refresh timing for health endpoints.
type Tracker struct {
	mu                 sync.RWMutex
	lastRefresh        time.Time
	refreshDuration    time.Duration
	activeVersion      string
	versionsDiscovered int
	ready              bool
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordRefresh updates refresh timing and readiness.
func (t *Tracker) RecordRefresh(duration time.Duration, activeVersion string, versionsDiscovered int) {
	if t == nil {
		return
	}
	now := time.Now().UTC()
	t.mu.Lock()
	t.lastRefresh = now
	t.refreshDuration = duration
	t.activeVersion = activeVersion
	t.versionsDiscovered = versionsDiscovered
	t.ready = true
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastRefresh.IsZero() {
		value := t.lastRefresh
		last = &value
	}
	return Snapshot{
		LastRefreshTime:    last,
		RefreshDurationMS:  int64(t.refreshDuration / time.Millisecond),
		ActiveVersion:      t.activeVersion,
		VersionsDiscovered: t.versionsDiscovered,
	}
}

// Ready reports whether at least one successful refresh has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last refresh completed within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil {
		return false
	}
	if pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastRefresh.IsZero() {
		return false
	}
	return now.Sub(t.lastRefresh) <= 2*pollInterval
}
