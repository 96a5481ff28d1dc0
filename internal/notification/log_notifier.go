package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

// LogNotifier writes messages to the log instead of sending them. Used in dev mode.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("notifier", "log").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, notif models.Notification) error {
	n.logger.Info().
		Str("notification_id", notif.ID).
		Str("event_type", string(notif.EventType)).
		Str("to", notif.Address).
		Str("text", notif.Message).
		Msg("message dispatched (dev mode)")
	return nil
}

func (n *LogNotifier) String() string {
	return "LogNotifier"
}
