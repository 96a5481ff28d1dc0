// Package queue holds students' housing requests until the matcher picks them up.
package queue

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

// MaxGuests bounds num_guests; no host can offer more than this many places.
const MaxGuests = 1000

type Queue struct {
	store  repository.Store
	logger zerolog.Logger
}

func New(store repository.Store, logger zerolog.Logger) *Queue {
	return &Queue{store: store, logger: logger.With().Str("component", "queue").Logger()}
}

// Submit enqueues a pending request for a student.
func (q *Queue) Submit(ctx context.Context, studentID, location string, numGuests int) (models.Request, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return models.Request{}, apperrors.Validation("location is required")
	}
	if numGuests < 1 || numGuests > MaxGuests {
		return models.Request{}, apperrors.Validation("num_guests must be between 1 and %d, got %d", MaxGuests, numGuests)
	}
	student, err := q.store.Accounts().GetAccount(ctx, studentID)
	if err != nil {
		return models.Request{}, err
	}
	if student.Role != models.RoleStudent {
		return models.Request{}, apperrors.Validation("account %s is not a student", studentID)
	}

	req, err := q.store.Requests().CreateRequest(ctx, models.Request{
		StudentID: studentID,
		Location:  location,
		NumGuests: numGuests,
	})
	if err != nil {
		return models.Request{}, err
	}
	q.logger.Info().Str("request_id", req.ID).Str("student_id", studentID).Str("location", location).Int("num_guests", numGuests).Msg("request submitted")
	return req, nil
}

func (q *Queue) Get(ctx context.Context, id string) (models.Request, error) {
	return q.store.Requests().GetRequest(ctx, id)
}

// MatchFor returns the match a matched request produced.
func (q *Queue) MatchFor(ctx context.Context, requestID string) (models.Match, error) {
	return q.store.Matches().GetMatchByRequest(ctx, requestID)
}

func (q *Queue) ListByStudent(ctx context.Context, studentID string) ([]models.Request, error) {
	return q.store.Requests().ListRequestsByStudent(ctx, studentID)
}

// Cancel withdraws a pending request. Matched or cancelled requests yield InvalidState.
func (q *Queue) Cancel(ctx context.Context, id string) (models.Request, error) {
	req, err := q.store.Requests().CancelRequest(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	q.logger.Info().Str("request_id", id).Msg("request cancelled")
	return req, nil
}
