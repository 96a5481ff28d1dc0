package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
)

const matchColumns = `id, request_id, host_id, host_confirmed, student_confirmed, status, created_at, updated_at`

type matchRepository struct {
	q queryer
}

func (r *matchRepository) CreateMatch(ctx context.Context, requestID, hostID string, createdAt time.Time) (models.Match, error) {
	const query = `
		INSERT INTO matches (request_id, host_id, status, created_at, updated_at)
		VALUES ($1, $2, 'awaiting', $3, $3)
		RETURNING ` + matchColumns

	match, err := scanMatch(r.q.QueryRowContext(ctx, query, requestID, hostID, createdAt))
	return match, translate(err, "match for request "+requestID)
}

func (r *matchRepository) GetMatch(ctx context.Context, id string) (models.Match, error) {
	const query = `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.q.QueryRowContext(ctx, query, id))
	return match, translate(err, "match "+id)
}

func (r *matchRepository) GetMatchByRequest(ctx context.Context, requestID string) (models.Match, error) {
	const query = `SELECT ` + matchColumns + ` FROM matches WHERE request_id = $1`
	match, err := scanMatch(r.q.QueryRowContext(ctx, query, requestID))
	return match, translate(err, "match for request "+requestID)
}

func (r *matchRepository) Confirm(ctx context.Context, id string, party models.Party) (models.Match, bool, error) {
	var query string
	switch party {
	case models.PartyHost:
		query = `
		UPDATE matches
		SET host_confirmed = TRUE,
		    status = CASE WHEN student_confirmed THEN 'confirmed' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'awaiting'
		RETURNING ` + matchColumns
	case models.PartyStudent:
		query = `
		UPDATE matches
		SET student_confirmed = TRUE,
		    status = CASE WHEN host_confirmed THEN 'confirmed' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'awaiting'
		RETURNING ` + matchColumns
	default:
		return models.Match{}, false, apperrors.Validation("unknown party %q", party)
	}

	// The row was awaiting when this UPDATE matched it, so a confirmed result
	// means this statement made the transition.
	match, err := scanMatch(r.q.QueryRowContext(ctx, query, id))
	if err == nil {
		return match, match.Status == models.MatchConfirmed, nil
	}
	if err != sql.ErrNoRows {
		return models.Match{}, false, translate(err, "confirm match "+id)
	}

	// Not awaiting: a confirmed match is a no-op, an expired one is rejected.
	current, err := r.GetMatch(ctx, id)
	if err != nil {
		return models.Match{}, false, err
	}
	if current.Status == models.MatchExpired {
		return models.Match{}, false, apperrors.InvalidState("match %s has expired", id)
	}
	return current, false, nil
}

func (r *matchRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	const query = `
		UPDATE matches
		SET status = 'expired', updated_at = now()
		WHERE status = 'awaiting'
		  AND created_at < $1
		  AND NOT (host_confirmed AND student_confirmed)
		RETURNING ` + matchColumns

	rows, err := r.q.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, translate(err, "expire stale matches")
	}
	defer rows.Close()

	var expired []models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, translate(err, "scan match")
		}
		expired = append(expired, match)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "expire stale matches")
	}
	return expired, nil
}

func scanMatch(s scanner) (models.Match, error) {
	var m models.Match
	err := s.Scan(
		&m.ID,
		&m.RequestID,
		&m.HostID,
		&m.HostConfirmed,
		&m.StudentConfirmed,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}
