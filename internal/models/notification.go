package models

import "time"

type NotificationEvent string

const (
	NotificationAvailabilityRequest NotificationEvent = "availability_request"
	NotificationAvailabilityReply   NotificationEvent = "availability_reply"
	NotificationMatchCreated        NotificationEvent = "match_created"
	NotificationMatchConfirmed      NotificationEvent = "match_confirmed"
	NotificationMatchExpired        NotificationEvent = "match_expired"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is one outbound text message and its delivery outcome.
type Notification struct {
	ID        string             `json:"id" db:"id"`
	AccountID *string            `json:"account_id,omitempty" db:"account_id"`
	Address   string             `json:"address" db:"address"`
	EventType NotificationEvent  `json:"event_type" db:"event_type"`
	Message   string             `json:"message" db:"message"`
	MatchID   *string            `json:"match_id,omitempty" db:"match_id"`
	Status    NotificationStatus `json:"status" db:"status"`
	Error     *string            `json:"error,omitempty" db:"error"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	SentAt    *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
}
