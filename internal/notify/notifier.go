package notify

import (
	"context"
	"time"
)

// Event kinds delivered to notification sinks.
const (
	KindSwitchCompleted = "switch-completed"
	KindSwitchDegraded  = "switch-degraded"
	KindExternalChange  = "external-change"
	KindRecoveryDone    = "recovery-completed"
)

// Event is one user-visible runtime change.
type Event struct {
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Version  string    `json:"version,omitempty"`
	Previous string    `json:"previous,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier delivers runtime events to external sinks.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
