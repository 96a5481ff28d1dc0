package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

const notificationColumns = `id, account_id, address, event_type, message, match_id, status, error, created_at, sent_at`

type notificationRepository struct {
	q queryer
}

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	const query = `
		INSERT INTO notifications (account_id, address, event_type, message, match_id, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING ` + notificationColumns

	row := r.q.QueryRowContext(ctx, query,
		optionalID(params.AccountID),
		strings.TrimSpace(params.Address),
		params.Event,
		params.Message,
		optionalID(params.MatchID),
	)
	notif, err := scanNotification(row)
	return notif, translate(err, "create notification")
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, reason string) error {
	const query = `
		UPDATE notifications
		SET status = $2,
		    error = NULLIF($3, ''),
		    sent_at = CASE WHEN $2 = 'sent' THEN now() ELSE sent_at END
		WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, id, status, reason)
	if err != nil {
		return translate(err, "update notification "+id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return translate(sql.ErrNoRows, "notification "+id)
	}
	return nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, strings.TrimSpace(accountID), limit)
	if err != nil {
		return nil, translate(err, "list notifications")
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, translate(err, "scan notification")
		}
		notifications = append(notifications, notif)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list notifications")
	}
	return notifications, nil
}

func optionalID(id *string) interface{} {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return strings.TrimSpace(*id)
}

func scanNotification(s scanner) (models.Notification, error) {
	var (
		notif     models.Notification
		accountID sql.NullString
		matchID   sql.NullString
		reason    sql.NullString
		sentAt    sql.NullTime
	)

	if err := s.Scan(
		&notif.ID,
		&accountID,
		&notif.Address,
		&notif.EventType,
		&notif.Message,
		&matchID,
		&notif.Status,
		&reason,
		&notif.CreatedAt,
		&sentAt,
	); err != nil {
		return models.Notification{}, err
	}

	if accountID.Valid {
		v := accountID.String
		notif.AccountID = &v
	}
	if matchID.Valid {
		v := matchID.String
		notif.MatchID = &v
	}
	if reason.Valid {
		v := reason.String
		notif.Error = &v
	}
	if sentAt.Valid {
		t := sentAt.Time
		notif.SentAt = &t
	}
	return notif, nil
}
