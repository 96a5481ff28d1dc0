package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

const defaultSubjectPrefix = "hostmatch.notifications"

// NATSNotifier publishes every outbound notification as a JSON event on
// <prefix>.<event_type> for downstream consumers.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// Event is the payload published for each notification.
type Event struct {
	NotificationID string                   `json:"notification_id"`
	AccountID      string                   `json:"account_id,omitempty"`
	MatchID        string                   `json:"match_id,omitempty"`
	EventType      models.NotificationEvent `json:"event_type"`
	Address        string                   `json:"address"`
	Message        string                   `json:"message"`
	CreatedAt      time.Time                `json:"created_at"`
}

func NewNATSNotifier(url, prefix string, logger zerolog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("hostmatch"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSNotifier{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("notifier", "nats").Logger(),
	}, nil
}

func (n *NATSNotifier) Notify(ctx context.Context, notif models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(eventFor(notif))
	if err != nil {
		return errors.Wrap(err, "marshal notification event")
	}
	subject := subjectFor(n.prefix, notif.EventType)
	if err := n.conn.Publish(subject, payload); err != nil {
		return errors.Wrapf(err, "publish %s", subject)
	}
	n.logger.Debug().Str("subject", subject).Str("notification_id", notif.ID).Msg("notification event published")
	return nil
}

func (n *NATSNotifier) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

func (n *NATSNotifier) String() string {
	return fmt.Sprintf("NATSNotifier(prefix=%s)", n.prefix)
}

func subjectFor(prefix string, event models.NotificationEvent) string {
	return prefix + "." + string(event)
}

func eventFor(notif models.Notification) Event {
	evt := Event{
		NotificationID: notif.ID,
		EventType:      notif.EventType,
		Address:        notif.Address,
		Message:        notif.Message,
		CreatedAt:      notif.CreatedAt,
	}
	if notif.AccountID != nil {
		evt.AccountID = *notif.AccountID
	}
	if notif.MatchID != nil {
		evt.MatchID = *notif.MatchID
	}
	return evt
}
