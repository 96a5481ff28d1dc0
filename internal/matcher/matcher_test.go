package matcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
	"github.com/anywhere-israel/hostmatch/internal/repository/memory"
)

var (
	monday = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	runAt  = monday.Add(10 * time.Hour)
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, ctx: context.Background(), clock: monday}
	f.store = memory.New(memory.WithClock(func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}))
	return f
}

func (f *fixture) host(id, location string, available bool, capacity int) {
	f.t.Helper()
	_, err := f.store.Accounts().CreateAccount(f.ctx, models.Account{ID: id, Role: models.RoleHost, Phone: "+" + id, Location: location})
	require.NoError(f.t, err)
	_, err = f.store.Availability().UpsertAvailability(f.ctx, models.Availability{HostID: id, Available: available, Capacity: capacity, WindowStart: monday})
	require.NoError(f.t, err)
}

func (f *fixture) request(student, location string, guests int) models.Request {
	f.t.Helper()
	if _, err := f.store.Accounts().GetAccount(f.ctx, student); apperrors.IsNotFound(err) {
		_, err = f.store.Accounts().CreateAccount(f.ctx, models.Account{ID: student, Role: models.RoleStudent, Phone: "+" + student})
		require.NoError(f.t, err)
	}
	req, err := f.store.Requests().CreateRequest(f.ctx, models.Request{StudentID: student, Location: location, NumGuests: guests})
	require.NoError(f.t, err)
	return req
}

func (f *fixture) matcher(policy Policy) *Matcher {
	return New(f.store, policy, zerolog.Nop(), func() time.Time { return runAt })
}

func TestRunMatchesTelAvivScenario(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 3)
	req := f.request("S1", "Tel Aviv", 2)

	created, err := f.matcher(PolicyFirstEligible).Run(f.ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	got := created[0]
	assert.Equal(t, req.ID, got.Match.RequestID)
	assert.Equal(t, "H1", got.Match.HostID)
	assert.Equal(t, models.MatchAwaiting, got.Match.Status)
	assert.Equal(t, runAt, got.Match.CreatedAt)
	assert.Equal(t, "S1", got.Student.ID)

	stored, err := f.store.Requests().GetRequest(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestMatched, stored.Status)
}

func TestRunSelectsOnlySatisfyingHosts(t *testing.T) {
	f := newFixture(t)
	f.host("A-small", "Tel Aviv", true, 1)
	f.host("B-away", "Haifa", true, 10)
	f.host("C-off", "Tel Aviv", false, 10)
	f.host("D-fits", "Tel Aviv", true, 2)
	f.host("E-fits", "Tel Aviv", true, 5)
	f.request("S1", "Tel Aviv", 2)

	created, err := f.matcher(PolicyFirstEligible).Run(f.ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "D-fits", created[0].Match.HostID, "lowest eligible host id wins")

	for _, d := range created {
		assert.Equal(t, d.Request.Location, d.Host.Location)
	}
}

func TestRunIgnoresWindowsThatHaveNotStarted(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", false, 0)
	_, err := f.store.Availability().UpsertAvailability(f.ctx, models.Availability{
		HostID: "H1", Available: true, Capacity: 3, WindowStart: monday.AddDate(0, 0, 14),
	})
	require.NoError(t, err)
	req := f.request("S1", "Tel Aviv", 1)

	created, err := f.matcher(PolicyFirstEligible).Run(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, created, "host said no for the current week")

	later := New(f.store, PolicyFirstEligible, zerolog.Nop(), func() time.Time { return monday.AddDate(0, 0, 15) })
	created, err = later.Run(f.ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, req.ID, created[0].Match.RequestID)
}

func TestRunLeavesUnmatchableRequestsPending(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 1)
	req := f.request("S1", "Jerusalem", 1)

	created, err := f.matcher(PolicyFirstEligible).Run(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, created)

	stored, err := f.store.Requests().GetRequest(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 3)
	f.request("S1", "Tel Aviv", 2)
	f.request("S2", "Haifa", 1)

	m := f.matcher(PolicyFirstEligible)
	first, err := m.Run(f.ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := m.Run(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRunOrdersOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 2)
	older := f.request("S1", "Tel Aviv", 2)
	newer := f.request("S2", "Tel Aviv", 2)

	created, err := f.matcher(PolicyDeductCapacity).Run(f.ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, older.ID, created[0].Request.ID)

	stored, err := f.store.Requests().GetRequest(f.ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestPolicies(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.host("H1", "Tel Aviv", true, 3)
		f.host("H2", "Tel Aviv", true, 2)
		f.request("S1", "Tel Aviv", 2)
		f.request("S2", "Tel Aviv", 2)
		f.request("S3", "Tel Aviv", 1)
		return f
	}
	hosts := func(created []models.MatchDetails) []string {
		var out []string
		for _, d := range created {
			out = append(out, d.Match.HostID)
		}
		return out
	}

	t.Run("first eligible reuses a host", func(t *testing.T) {
		f := setup(t)
		created, err := f.matcher(PolicyFirstEligible).Run(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"H1", "H1", "H1"}, hosts(created))
	})

	t.Run("deduct capacity spreads by residual", func(t *testing.T) {
		f := setup(t)
		created, err := f.matcher(PolicyDeductCapacity).Run(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"H1", "H2", "H1"}, hosts(created))
	})
}

func TestConcurrentRunsCreateOneMatchPerRequest(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 50)
	for _, s := range []string{"S1", "S2", "S3", "S4", "S5"} {
		f.request(s, "Tel Aviv", 1)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := f.matcher(PolicyFirstEligible).Run(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += len(created)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, total)
	pending, err := f.store.Requests().ListPendingRequests(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// failingStore fails match creation for one request.
type failingStore struct {
	repository.Store
	failFor string
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(failingStore{Store: tx, failFor: s.failFor})
	})
}

func (s failingStore) Matches() repository.MatchRepository {
	return failingMatches{MatchRepository: s.Store.Matches(), failFor: s.failFor}
}

type failingMatches struct {
	repository.MatchRepository
	failFor string
}

func (m failingMatches) CreateMatch(ctx context.Context, requestID, hostID string, createdAt time.Time) (models.Match, error) {
	if requestID == m.failFor {
		return models.Match{}, assert.AnError
	}
	return m.MatchRepository.CreateMatch(ctx, requestID, hostID, createdAt)
}

func TestRunContinuesPastPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.host("H1", "Tel Aviv", true, 5)
	bad := f.request("S1", "Tel Aviv", 1)
	good := f.request("S2", "Tel Aviv", 1)

	m := New(failingStore{Store: f.store, failFor: bad.ID}, PolicyFirstEligible, zerolog.Nop(), nil)
	created, err := m.Run(f.ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, good.ID, created[0].Request.ID)

	stored, err := f.store.Requests().GetRequest(f.ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstEligible, p)

	p, err = ParsePolicy(" Deduct_Capacity ")
	require.NoError(t, err)
	assert.Equal(t, PolicyDeductCapacity, p)

	_, err = ParsePolicy("best_fit")
	assert.True(t, apperrors.IsValidation(err))
}
