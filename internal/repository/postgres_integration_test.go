package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/migration"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

// openTestStore connects to HOSTMATCH_TEST_DATABASE_URL and migrates it. The
// database is wiped, so point it at a throwaway instance.
func openTestStore(t *testing.T) repository.Store {
	t.Helper()
	url := os.Getenv("HOSTMATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HOSTMATCH_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, migration.Run(ctx, db, zerolog.Nop()))
	_, err = db.ExecContext(ctx, `TRUNCATE notifications, matches, requests, host_availability, accounts`)
	require.NoError(t, err)
	return repository.NewPostgresStore(db)
}

func seed(t *testing.T, s repository.Store) (models.Account, models.Request) {
	t.Helper()
	ctx := context.Background()
	host, err := s.Accounts().CreateAccount(ctx, models.Account{Role: models.RoleHost, Phone: "+h-" + uuid.NewString(), Location: "Tel Aviv"})
	require.NoError(t, err)
	student, err := s.Accounts().CreateAccount(ctx, models.Account{Role: models.RoleStudent, Phone: "+s-" + uuid.NewString()})
	require.NoError(t, err)
	req, err := s.Requests().CreateRequest(ctx, models.Request{StudentID: student.ID, Location: "Tel Aviv", NumGuests: 2})
	require.NoError(t, err)
	return host, req
}

func TestPostgresMatchLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host, req := seed(t, s)
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	m, err := s.Matches().CreateMatch(ctx, req.ID, host.ID, t0)
	require.NoError(t, err)
	_, err = s.Matches().CreateMatch(ctx, req.ID, host.ID, t0)
	assert.True(t, apperrors.IsConflict(err), "one match per request")

	m, completed, err := s.Matches().Confirm(ctx, m.ID, models.PartyHost)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, models.MatchAwaiting, m.Status)

	m, completed, err = s.Matches().Confirm(ctx, m.ID, models.PartyStudent)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, models.MatchConfirmed, m.Status)

	_, completed, err = s.Matches().Confirm(ctx, m.ID, models.PartyHost)
	require.NoError(t, err)
	assert.False(t, completed)

	expired, err := s.Matches().ExpireStale(ctx, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired, "confirmed matches never expire")

	_, _, err = s.Matches().Confirm(ctx, uuid.NewString(), models.PartyHost)
	assert.True(t, apperrors.IsNotFound(err))
	_, _, err = s.Matches().Confirm(ctx, "not-a-uuid", models.PartyHost)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPostgresExpireStale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host, req := seed(t, s)
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	m, err := s.Matches().CreateMatch(ctx, req.ID, host.ID, t0)
	require.NoError(t, err)

	expired, err := s.Matches().ExpireStale(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, expired, "created_at equal to cutoff is not stale")

	expired, err = s.Matches().ExpireStale(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, m.ID, expired[0].ID)
	assert.Equal(t, models.MatchExpired, expired[0].Status)

	expired, err = s.Matches().ExpireStale(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	_, _, err = s.Matches().Confirm(ctx, m.ID, models.PartyStudent)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestPostgresAvailabilityAsOf(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host, _ := seed(t, s)
	week1 := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	week3 := week1.AddDate(0, 0, 14)

	_, err := s.Availability().UpsertAvailability(ctx, models.Availability{HostID: host.ID, Available: true, Capacity: 3, WindowStart: week3})
	require.NoError(t, err)
	_, err = s.Availability().UpsertAvailability(ctx, models.Availability{HostID: host.ID, Available: false, Capacity: 0, WindowStart: week1})
	require.NoError(t, err)

	inWeek1 := week1.Add(10 * time.Hour)
	latest, err := s.Availability().GetLatestAvailability(ctx, host.ID, inWeek1)
	require.NoError(t, err)
	assert.True(t, week1.Equal(latest.WindowStart))
	assert.False(t, latest.Available)

	hosts, err := s.Availability().ListEligibleHosts(ctx, "Tel Aviv", 1, inWeek1)
	require.NoError(t, err)
	assert.Empty(t, hosts)

	hosts, err = s.Availability().ListEligibleHosts(ctx, "Tel Aviv", 3, week3.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, host.ID, hosts[0].Host.ID)
}
