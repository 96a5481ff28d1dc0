package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anywhere-israel/hostmatch/internal/confirmation"
	"github.com/anywhere-israel/hostmatch/internal/lock"
	"github.com/anywhere-israel/hostmatch/internal/matcher"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/notification"
	"github.com/anywhere-israel/hostmatch/internal/repository/memory"
)

var monday = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

type phoneNotifier struct {
	mu     sync.Mutex
	sent   []string
	broken map[string]bool
}

func (n *phoneNotifier) Notify(_ context.Context, notif models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.broken[notif.Address] {
		return errors.New("send failed")
	}
	n.sent = append(n.sent, notif.Address)
	return nil
}

type harness struct {
	store    *memory.Store
	notifier *phoneNotifier
	runner   *Runner
	now      time.Time
}

func newHarness(t *testing.T, locker lock.Locker) *harness {
	t.Helper()
	h := &harness{store: memory.New(), notifier: &phoneNotifier{broken: map[string]bool{}}, now: monday.Add(time.Hour)}
	clock := func() time.Time { return h.now }
	svc := notification.NewService(h.store.Notifications(), zerolog.Nop(), time.Second, h.notifier)
	h.runner = NewRunner(
		h.store,
		matcher.New(h.store, matcher.PolicyFirstEligible, zerolog.Nop(), clock),
		confirmation.NewTracker(h.store, 24*time.Hour, zerolog.Nop()),
		svc,
		locker,
		Config{Timeout: 5 * time.Second},
		zerolog.Nop(),
		clock,
	)

	ctx := context.Background()
	for _, a := range []models.Account{
		{ID: "h1", Role: models.RoleHost, Phone: "+h1", Location: "Tel Aviv"},
		{ID: "h2", Role: models.RoleHost, Phone: "+h2", Location: "Haifa"},
		{ID: "h3", Role: models.RoleHost, Phone: "+h3", Location: "Haifa"},
		{ID: "s1", Role: models.RoleStudent, Phone: "+s1"},
	} {
		_, err := h.store.Accounts().CreateAccount(ctx, a)
		require.NoError(t, err)
	}
	_, err := h.store.Availability().UpsertAvailability(ctx, models.Availability{HostID: "h1", Available: true, Capacity: 3, WindowStart: monday})
	require.NoError(t, err)
	return h
}

func TestPollHostsContinuesPastFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.broken["+h2"] = true

	report, err := h.runner.Run(context.Background(), PollHosts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.ElementsMatch(t, []string{"+h1", "+h3"}, h.notifier.sent)
}

func TestRunMatchingNotifiesBothParties(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req, err := h.store.Requests().CreateRequest(ctx, models.Request{StudentID: "s1", Location: "Tel Aviv", NumGuests: 2})
	require.NoError(t, err)

	report, err := h.runner.RunMatching(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{"+h1", "+s1"}, h.notifier.sent)

	match, err := h.store.Matches().GetMatchByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", match.HostID)
}

func TestRunMatchingKeepsMatchWhenNotificationFails(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.broken["+h1"] = true
	h.notifier.broken["+s1"] = true
	ctx := context.Background()
	req, err := h.store.Requests().CreateRequest(ctx, models.Request{StudentID: "s1", Location: "Tel Aviv", NumGuests: 1})
	require.NoError(t, err)

	report, err := h.runner.RunMatching(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Failed)

	stored, err := h.store.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestMatched, stored.Status)
}

func TestExpireSweepNotifiesAndIsRepeatable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req, err := h.store.Requests().CreateRequest(ctx, models.Request{StudentID: "s1", Location: "Tel Aviv", NumGuests: 1})
	require.NoError(t, err)
	_, err = h.store.Matches().CreateMatch(ctx, req.ID, "h1", h.now)
	require.NoError(t, err)

	h.now = h.now.Add(25 * time.Hour)
	report, err := h.runner.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, []string{"+h1", "+s1"}, h.notifier.sent)

	report, err = h.runner.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Len(t, h.notifier.sent, 2)
}

func TestJobSkippedWhileLockHeld(t *testing.T) {
	locker := lock.NewLocalLocker()
	h := newHarness(t, locker)
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, string(RunMatching), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := h.runner.RunMatching(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	require.NoError(t, release(ctx))
	report, err = h.runner.RunMatching(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
}

func TestParseName(t *testing.T) {
	n, err := ParseName("expire-sweep")
	require.NoError(t, err)
	assert.Equal(t, ExpireSweep, n)

	_, err = ParseName("cleanup")
	assert.Error(t, err)
}
