package repository

import (
	"context"
	"time"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (models.Account, error)
	ListAccounts(ctx context.Context, role models.Role) ([]models.Account, error)
	UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (models.Account, error)
}

type AvailabilityRepository interface {
	// UpsertAvailability overwrites the host's record for a.WindowStart.
	UpsertAvailability(ctx context.Context, a models.Availability) (models.Availability, error)
	// GetLatestAvailability returns the record with the most recent window that
	// has started by asOf. Windows opening after asOf are ignored.
	GetLatestAvailability(ctx context.Context, hostID string, asOf time.Time) (models.Availability, error)
	// ListEligibleHosts returns hosts in location whose latest record as of asOf
	// is available with capacity >= minCapacity, ordered by ascending host id.
	ListEligibleHosts(ctx context.Context, location string, minCapacity int, asOf time.Time) ([]models.HostCandidate, error)
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, req models.Request) (models.Request, error)
	GetRequest(ctx context.Context, id string) (models.Request, error)
	ListRequestsByStudent(ctx context.Context, studentID string) ([]models.Request, error)
	// ListPendingRequests returns pending requests oldest first.
	ListPendingRequests(ctx context.Context) ([]models.Request, error)
	// MarkRequestMatched moves a pending request to matched. A request that is no
	// longer pending yields a Conflict error.
	MarkRequestMatched(ctx context.Context, id string) error
	CancelRequest(ctx context.Context, id string) (models.Request, error)
}

type MatchRepository interface {
	// CreateMatch inserts an awaiting match. A second match for the same request
	// yields a Conflict error.
	CreateMatch(ctx context.Context, requestID, hostID string, createdAt time.Time) (models.Match, error)
	GetMatch(ctx context.Context, id string) (models.Match, error)
	GetMatchByRequest(ctx context.Context, requestID string) (models.Match, error)
	// Confirm sets the party's flag on an awaiting match in one statement and
	// moves it to confirmed when both flags are set. completed is true only when
	// this call's write performed the move to confirmed.
	Confirm(ctx context.Context, id string, party models.Party) (match models.Match, completed bool, err error)
	// ExpireStale moves awaiting matches created before cutoff to expired and
	// returns only the rows it changed.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]models.Match, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, reason string) error
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error)
}

type CreateNotificationParams struct {
	AccountID *string
	Address   string
	Event     models.NotificationEvent
	Message   string
	MatchID   *string
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Accounts() AccountRepository
	Availability() AvailabilityRepository
	Requests() RequestRepository
	Matches() MatchRepository
	Notifications() NotificationRepository

	// WithTx runs fn against a transactional Store. fn's error rolls back every
	// write made through the Store passed to it.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
