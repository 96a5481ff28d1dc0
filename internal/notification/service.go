package notification

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

const defaultSendTimeout = 10 * time.Second

// Message is one text for one contact address.
type Message struct {
	AccountID string
	Address   string
	Event     models.NotificationEvent
	Text      string
	MatchID   string
}

// Service persists outbound texts and fans them out to the notifiers. Delivery
// failures come back as Transient errors after the notification is marked failed.
type Service interface {
	Send(ctx context.Context, msg Message) (models.Notification, error)
	RequestAvailability(ctx context.Context, host models.Account) error
	NotifyMatchCreated(ctx context.Context, match models.MatchDetails) error
	NotifyMatchConfirmed(ctx context.Context, match models.MatchDetails) error
	NotifyMatchExpired(ctx context.Context, match models.MatchDetails) error
	Reply(ctx context.Context, account models.Account, text string) error
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	timeout   time.Duration
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, timeout time.Duration, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		timeout:   timeout,
		notifiers: active,
	}
}

func (s *service) Send(ctx context.Context, msg Message) (models.Notification, error) {
	if msg.Event == "" {
		return models.Notification{}, apperrors.Validation("event type is required")
	}
	address := strings.TrimSpace(msg.Address)
	if address == "" {
		return models.Notification{}, apperrors.Validation("contact address is required")
	}

	params := repository.CreateNotificationParams{
		Address: address,
		Event:   msg.Event,
		Message: strings.TrimSpace(msg.Text),
	}
	if id := strings.TrimSpace(msg.AccountID); id != "" {
		params.AccountID = &id
	}
	if id := strings.TrimSpace(msg.MatchID); id != "" {
		params.MatchID = &id
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(msg.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}

	var deliveryErr error
	for _, notifier := range s.notifiers {
		if err := s.notify(ctx, notifier, notif); err != nil {
			logNotifyError(s.logger, err, notifierChannelName(notifier), notif)
			deliveryErr = multierr.Append(deliveryErr, err)
		}
	}

	status, reason := models.NotificationSent, ""
	if deliveryErr != nil {
		status, reason = models.NotificationFailed, deliveryErr.Error()
	}
	// The status write must land even when the caller's context has run out.
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), notif.ID, status, reason); err != nil {
		s.logger.Error().Err(err).Str("notification_id", notif.ID).Msg("failed to record notification status")
	}
	notif.Status = status
	if deliveryErr != nil {
		notif.Error = &reason
		return notif, apperrors.Transient(deliveryErr, "deliver %s to %s", msg.Event, address)
	}
	return notif, nil
}

// notify bounds one channel's delivery so a hung send cannot stall the caller.
func (s *service) notify(ctx context.Context, n Notifier, notif models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return n.Notify(ctx, notif)
}

func (s *service) RequestAvailability(ctx context.Context, host models.Account) error {
	_, err := s.Send(ctx, Message{
		AccountID: host.ID,
		Address:   host.Phone,
		Event:     models.NotificationAvailabilityRequest,
		Text:      availabilityRequestText(),
	})
	return err
}

func (s *service) NotifyMatchCreated(ctx context.Context, match models.MatchDetails) error {
	return s.notifyBoth(ctx, match, models.NotificationMatchCreated,
		matchCreatedHostText(match.Request.NumGuests, match.Request.Location),
		matchCreatedStudentText(match.Request.Location),
	)
}

func (s *service) NotifyMatchConfirmed(ctx context.Context, match models.MatchDetails) error {
	text := matchConfirmedText(match.Request.Location)
	return s.notifyBoth(ctx, match, models.NotificationMatchConfirmed, text, text)
}

func (s *service) NotifyMatchExpired(ctx context.Context, match models.MatchDetails) error {
	text := matchExpiredText(match.Request.Location)
	return s.notifyBoth(ctx, match, models.NotificationMatchExpired, text, text)
}

// notifyBoth always attempts both parties; failures are combined.
func (s *service) notifyBoth(ctx context.Context, match models.MatchDetails, event models.NotificationEvent, hostText, studentText string) error {
	_, hostErr := s.Send(ctx, Message{
		AccountID: match.Host.ID,
		Address:   match.Host.Phone,
		Event:     event,
		Text:      hostText,
		MatchID:   match.Match.ID,
	})
	_, studentErr := s.Send(ctx, Message{
		AccountID: match.Student.ID,
		Address:   match.Student.Phone,
		Event:     event,
		Text:      studentText,
		MatchID:   match.Match.ID,
	})
	return multierr.Combine(hostErr, studentErr)
}

func (s *service) Reply(ctx context.Context, account models.Account, text string) error {
	_, err := s.Send(ctx, Message{
		AccountID: account.ID,
		Address:   account.Phone,
		Event:     models.NotificationAvailabilityReply,
		Text:      text,
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, accountID, limit)
}
