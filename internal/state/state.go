package state

import (
	"context"
	"time"
)

// Snapshot captures the persisted runtime state between runs: which version
// was active at the last refresh and which versions were discovered. On
// startup, a stored version diverging from the resolved one means the
// environment changed while nothing was watching.
type Snapshot struct {
	ActiveVersion string    `json:"active_version"`
	ActiveValid   bool      `json:"active_valid"`
	Versions      []string  `json:"versions"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Empty reports whether the snapshot carries no observation.
func (s Snapshot) Empty() bool {
	return s.ActiveVersion == "" && len(s.Versions) == 0 && s.UpdatedAt.IsZero()
}

// Store defines the interface for persisting snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
