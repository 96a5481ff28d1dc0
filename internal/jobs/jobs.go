// Package jobs wraps the three scheduled operations. Each job has its own
// timeout and lock, and none depends on another succeeding.
package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/confirmation"
	"github.com/anywhere-israel/hostmatch/internal/lock"
	"github.com/anywhere-israel/hostmatch/internal/matcher"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/notification"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

type Name string

const (
	PollHosts   Name = "poll-hosts"
	ExpireSweep Name = "expire-sweep"
	RunMatching Name = "run-matching"
)

func Names() []Name {
	return []Name{PollHosts, ExpireSweep, RunMatching}
}

func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", apperrors.Validation("unknown job %q", s)
}

// Report summarizes one job run.
type Report struct {
	Job Name `json:"job"`
	// Processed counts hosts polled, matches expired or matches created.
	Processed int `json:"processed"`
	// Failed counts best-effort notifications that could not be delivered.
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped,omitempty"`
}

type Config struct {
	Timeout time.Duration
	LockTTL time.Duration
}

type Runner struct {
	store    repository.Store
	matcher  *matcher.Matcher
	tracker  *confirmation.Tracker
	notifier notification.Service
	locker   lock.Locker
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

func NewRunner(
	store repository.Store,
	m *matcher.Matcher,
	tracker *confirmation.Tracker,
	notifier notification.Service,
	locker lock.Locker,
	cfg Config,
	logger zerolog.Logger,
	now func() time.Time,
) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Timeout
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{
		store:    store,
		matcher:  m,
		tracker:  tracker,
		notifier: notifier,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.With().Str("component", "jobs").Logger(),
		now:      now,
	}
}

// Run executes the named job once.
func (r *Runner) Run(ctx context.Context, name Name) (Report, error) {
	switch name {
	case PollHosts:
		return r.PollHosts(ctx)
	case ExpireSweep:
		return r.ExpireSweep(ctx)
	case RunMatching:
		return r.RunMatching(ctx)
	default:
		return Report{}, apperrors.Validation("unknown job %q", name)
	}
}

// PollHosts asks every host for this week's availability. One failed send
// never stops the others.
func (r *Runner) PollHosts(ctx context.Context) (Report, error) {
	return r.guard(ctx, PollHosts, func(ctx context.Context, report *Report) error {
		hosts, err := r.store.Accounts().ListAccounts(ctx, models.RoleHost)
		if err != nil {
			return errors.Wrap(err, "list hosts")
		}
		for _, host := range hosts {
			report.Processed++
			if err := r.notifier.RequestAvailability(ctx, host); err != nil {
				report.Failed++
				r.logNotify(err, PollHosts, "", host.ID)
			}
		}
		return nil
	})
}

// ExpireSweep expires stale matches and tells both parties.
func (r *Runner) ExpireSweep(ctx context.Context) (Report, error) {
	return r.guard(ctx, ExpireSweep, func(ctx context.Context, report *Report) error {
		expired, err := r.tracker.ExpireStale(ctx, r.now())
		if err != nil {
			return err
		}
		report.Processed = len(expired)
		report.Failed = r.notifyAll(ctx, ExpireSweep, expired, r.notifier.NotifyMatchExpired)
		return nil
	})
}

// RunMatching runs the matcher and tells both parties of every new match.
// Notifications go out only after each match is committed.
func (r *Runner) RunMatching(ctx context.Context) (Report, error) {
	return r.guard(ctx, RunMatching, func(ctx context.Context, report *Report) error {
		created, err := r.matcher.Run(ctx)
		report.Processed = len(created)
		report.Failed = r.notifyAll(ctx, RunMatching, created, r.notifier.NotifyMatchCreated)
		return err
	})
}

func (r *Runner) notifyAll(ctx context.Context, job Name, matches []models.MatchDetails, notify func(context.Context, models.MatchDetails) error) int {
	failed := 0
	for _, m := range matches {
		if err := notify(ctx, m); err != nil {
			failed += len(multierr.Errors(err))
			r.logNotify(err, job, m.Match.ID, "")
		}
	}
	return failed
}

func (r *Runner) logNotify(err error, job Name, matchID, accountID string) {
	evt := r.logger.Warn().Err(err).Str("job", string(job)).Bool("transient", apperrors.IsTransient(err))
	if matchID != "" {
		evt = evt.Str("match_id", matchID)
	}
	if accountID != "" {
		evt = evt.Str("account_id", accountID)
	}
	evt.Msg("notification failed")
}

// guard gives the job its own deadline and lock, and turns a panic into an error.
func (r *Runner) guard(ctx context.Context, name Name, fn func(ctx context.Context, report *Report) error) (report Report, err error) {
	report.Job = name
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	release, ok, err := r.locker.TryAcquire(ctx, string(name), r.cfg.LockTTL)
	if err != nil {
		// run unlocked when the lock backend is down
		r.logger.Warn().Err(err).Str("job", string(name)).Msg("lock unavailable, running unlocked")
	} else if !ok {
		r.logger.Info().Str("job", string(name)).Msg("job already running elsewhere, skipping")
		report.Skipped = true
		return report, nil
	} else {
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				r.logger.Warn().Err(relErr).Str("job", string(name)).Msg("failed to release job lock")
			}
		}()
	}

	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("job %s panicked: %v", name, p)
		}
		log := r.logger.Info()
		if err != nil {
			log = r.logger.Error().Err(err)
		}
		log.Str("job", string(name)).
			Int("processed", report.Processed).
			Int("failed", report.Failed).
			Dur("duration", time.Since(start)).
			Msg("job finished")
	}()

	err = fn(ctx, &report)
	return report, err
}
