package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier. Events are rate limited per kind so a noisy
// drift detector cannot starve switch announcements.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.poster.waitForRateLimit(ctx, event.Kind); err != nil {
		return err
	}

	payload, err := json.Marshal(buildSlackMessage(event))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("kind", event.Kind).
		Str("version", event.Version).
		Msg("slack notification sent")

	return nil
}

func (n *SlackNotifier) postOnce(ctx context.Context, payload []byte) error {
	return n.poster.postOnce(ctx, payload)
}

func buildSlackMessage(event Event) slack.WebhookMessage {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", event.Title, false, false))

	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Event: *%s*", event.Kind), false, false),
	}
	if !event.At.IsZero() {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", event.At.UTC().Format(time.RFC3339), false, false))
	}
	contextBlock := slack.NewContextBlock("", contextElements...)

	bodyText := event.Body
	if bodyText == "" {
		bodyText = event.Title
	}
	text := slack.NewTextBlockObject("mrkdwn", bodyText, false, false)

	fields := make([]*slack.TextBlockObject, 0, 2)
	if event.Version != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Version:*\n`"+event.Version+"`", false, false))
	}
	if event.Previous != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Previously:*\n`"+event.Previous+"`", false, false))
	}
	section := slack.NewSectionBlock(text, fields, nil)

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, contextBlock, section}}
	return slack.WebhookMessage{
		Text:   event.Title,
		Blocks: &blockSet,
	}
}
