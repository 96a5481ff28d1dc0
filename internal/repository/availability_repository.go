package repository

import (
	"context"
	"time"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

type availabilityRepository struct {
	q queryer
}

func (r *availabilityRepository) UpsertAvailability(ctx context.Context, a models.Availability) (models.Availability, error) {
	const query = `
		INSERT INTO host_availability (host_id, window_start, available, capacity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host_id, window_start)
		DO UPDATE SET available = EXCLUDED.available,
		              capacity = EXCLUDED.capacity,
		              updated_at = now()
		RETURNING host_id, available, capacity, window_start, updated_at`

	var out models.Availability
	err := r.q.QueryRowContext(ctx, query, a.HostID, a.WindowStart, a.Available, a.Capacity).Scan(
		&out.HostID,
		&out.Available,
		&out.Capacity,
		&out.WindowStart,
		&out.UpdatedAt,
	)
	return out, translate(err, "upsert availability for "+a.HostID)
}

func (r *availabilityRepository) GetLatestAvailability(ctx context.Context, hostID string, asOf time.Time) (models.Availability, error) {
	const query = `
		SELECT host_id, available, capacity, window_start, updated_at
		FROM host_availability
		WHERE host_id = $1
		  AND window_start <= $2
		ORDER BY window_start DESC
		LIMIT 1`

	var out models.Availability
	err := r.q.QueryRowContext(ctx, query, hostID, asOf.UTC()).Scan(
		&out.HostID,
		&out.Available,
		&out.Capacity,
		&out.WindowStart,
		&out.UpdatedAt,
	)
	return out, translate(err, "availability for "+hostID)
}

func (r *availabilityRepository) ListEligibleHosts(ctx context.Context, location string, minCapacity int, asOf time.Time) ([]models.HostCandidate, error) {
	const query = `
		WITH latest AS (
			SELECT DISTINCT ON (host_id) host_id, available, capacity, window_start, updated_at
			FROM host_availability
			WHERE window_start <= $3
			ORDER BY host_id, window_start DESC
		)
		SELECT a.` + "id, a.role, a.name, a.phone, a.password_hash, a.about_me, a.preferences, a.location, a.created_at, a.updated_at" + `,
		       l.host_id, l.available, l.capacity, l.window_start, l.updated_at
		FROM accounts a
		JOIN latest l ON l.host_id = a.id
		WHERE a.role = 'host'
		  AND a.location = $1
		  AND l.available
		  AND l.capacity >= $2
		ORDER BY a.id`

	rows, err := r.q.QueryContext(ctx, query, location, minCapacity, asOf.UTC())
	if err != nil {
		return nil, translate(err, "list eligible hosts")
	}
	defer rows.Close()

	var candidates []models.HostCandidate
	for rows.Next() {
		var c models.HostCandidate
		if err := rows.Scan(
			&c.Host.ID,
			&c.Host.Role,
			&c.Host.Name,
			&c.Host.Phone,
			&c.Host.PasswordHash,
			&c.Host.AboutMe,
			&c.Host.Preferences,
			&c.Host.Location,
			&c.Host.CreatedAt,
			&c.Host.UpdatedAt,
			&c.Availability.HostID,
			&c.Availability.Available,
			&c.Availability.Capacity,
			&c.Availability.WindowStart,
			&c.Availability.UpdatedAt,
		); err != nil {
			return nil, translate(err, "scan eligible host")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list eligible hosts")
	}
	return candidates, nil
}
