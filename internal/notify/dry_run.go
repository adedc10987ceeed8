package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs events without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info().
		Str("kind", event.Kind).
		Str("title", event.Title).
		Str("body", event.Body).
		Str("version", event.Version).
		Str("previous", event.Previous).
		Msg("[DRY-RUN] Would notify")
	return nil
}
