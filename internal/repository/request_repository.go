package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
)

const requestColumns = `id, student_id, location, num_guests, status, created_at, updated_at`

type requestRepository struct {
	q queryer
}

func (r *requestRepository) CreateRequest(ctx context.Context, req models.Request) (models.Request, error) {
	const query = `
		INSERT INTO requests (student_id, location, num_guests, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING ` + requestColumns

	row := r.q.QueryRowContext(ctx, query, req.StudentID, strings.TrimSpace(req.Location), req.NumGuests)
	created, err := scanRequest(row)
	return created, translate(err, "create request")
}

func (r *requestRepository) GetRequest(ctx context.Context, id string) (models.Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	return req, translate(err, "request "+id)
}

func (r *requestRepository) ListRequestsByStudent(ctx context.Context, studentID string) ([]models.Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE student_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, studentID)
}

func (r *requestRepository) ListPendingRequests(ctx context.Context) ([]models.Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE status = 'pending' ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *requestRepository) MarkRequestMatched(ctx context.Context, id string) error {
	const query = `
		UPDATE requests
		SET status = 'matched', updated_at = now()
		WHERE id = $1 AND status = 'pending'`

	res, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err, "mark request "+id+" matched")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "mark request "+id+" matched")
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetRequest(ctx, id); err != nil {
		return err
	}
	return apperrors.Conflict("request %s is no longer pending", id)
}

func (r *requestRepository) CancelRequest(ctx context.Context, id string) (models.Request, error) {
	const query = `
		UPDATE requests
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns

	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		current, getErr := r.GetRequest(ctx, id)
		if getErr != nil {
			return models.Request{}, getErr
		}
		return models.Request{}, apperrors.InvalidState("request %s is %s", id, current.Status)
	}
	return req, translate(err, "cancel request "+id)
}

func (r *requestRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Request, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list requests")
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, translate(err, "scan request")
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list requests")
	}
	return requests, nil
}

func scanRequest(s scanner) (models.Request, error) {
	var req models.Request
	err := s.Scan(
		&req.ID,
		&req.StudentID,
		&req.Location,
		&req.NumGuests,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	return req, err
}
