// Package availability keeps each host's per-window offer of capacity.
package availability

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

// MaxCapacity is the largest number of guests one host can offer per window.
const MaxCapacity = 1000

type Registry struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewRegistry(store repository.Store, logger zerolog.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		store:  store,
		logger: logger.With().Str("component", "availability").Logger(),
		now:    now,
	}
}

// SetAvailability overwrites the host's record for window. A zero window means
// the current week; otherwise window must be a Monday 00:00 UTC no earlier than
// the current week.
func (r *Registry) SetAvailability(ctx context.Context, hostID string, available bool, capacity int, window time.Time) (models.Availability, error) {
	if capacity < 0 || capacity > MaxCapacity {
		return models.Availability{}, apperrors.Validation("capacity must be between 0 and %d, got %d", MaxCapacity, capacity)
	}
	current := WindowStart(r.now())
	if window.IsZero() {
		window = current
	}
	if !window.Equal(WindowStart(window)) {
		return models.Availability{}, apperrors.Validation("window_start %s is not a Monday 00:00 UTC", window.Format(time.RFC3339))
	}
	if window.Before(current) {
		return models.Availability{}, apperrors.Validation("window_start %s is in the past", window.Format(time.RFC3339))
	}
	if err := r.requireHost(ctx, hostID); err != nil {
		return models.Availability{}, err
	}

	rec, err := r.store.Availability().UpsertAvailability(ctx, models.Availability{
		HostID:      hostID,
		Available:   available,
		Capacity:    capacity,
		WindowStart: window.UTC(),
	})
	if err != nil {
		return models.Availability{}, errors.Wrapf(err, "set availability for %s", hostID)
	}
	r.logger.Debug().
		Str("host_id", hostID).
		Bool("available", available).
		Int("capacity", capacity).
		Time("window_start", rec.WindowStart).
		Msg("availability updated")
	return rec, nil
}

// IsEligible reports whether the host's record for the window in effect now can
// take minCapacity guests. A host with no such record is not eligible.
func (r *Registry) IsEligible(ctx context.Context, hostID string, minCapacity int) (bool, error) {
	if err := r.requireHost(ctx, hostID); err != nil {
		return false, err
	}
	rec, err := r.store.Availability().GetLatestAvailability(ctx, hostID, r.now())
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Eligible(minCapacity), nil
}

// ApplyReply records a host's answer to the availability question. "yes"
// without a number keeps the previous capacity.
func (r *Registry) ApplyReply(ctx context.Context, hostID string, reply Reply) (models.Availability, error) {
	prev, err := r.store.Availability().GetLatestAvailability(ctx, hostID, r.now())
	if err != nil && !apperrors.IsNotFound(err) {
		return models.Availability{}, err
	}

	switch reply.Kind {
	case ReplyYes:
		capacity := prev.Capacity
		if reply.Capacity != nil {
			capacity = *reply.Capacity
		}
		return r.SetAvailability(ctx, hostID, true, capacity, time.Time{})
	case ReplyNo:
		return r.SetAvailability(ctx, hostID, false, prev.Capacity, time.Time{})
	default:
		return models.Availability{}, apperrors.Validation("unrecognised availability reply")
	}
}

func (r *Registry) requireHost(ctx context.Context, hostID string) error {
	account, err := r.store.Accounts().GetAccount(ctx, hostID)
	if err != nil {
		return err
	}
	if account.Role != models.RoleHost {
		return apperrors.Validation("account %s is not a host", hostID)
	}
	return nil
}
