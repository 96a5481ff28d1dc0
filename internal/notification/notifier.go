package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

// Notifier delivers one persisted notification over a channel.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

func logNotifyError(logger zerolog.Logger, err error, channel string, notif models.Notification) {
	if err == nil {
		return
	}
	logger.Warn().
		Err(err).
		Str("notification_id", notif.ID).
		Str("event_type", string(notif.EventType)).
		Str("address", notif.Address).
		Str("channel", channel).
		Msg("failed to deliver notification")
}

func notifierChannelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
