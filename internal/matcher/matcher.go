// Package matcher pairs pending housing requests with eligible hosts.
package matcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

type Matcher struct {
	store  repository.Store
	policy Policy
	logger zerolog.Logger
	now    func() time.Time
}

func New(store repository.Store, policy Policy, logger zerolog.Logger, now func() time.Time) *Matcher {
	if policy == "" {
		policy = PolicyFirstEligible
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Matcher{
		store:  store,
		policy: policy,
		logger: logger.With().Str("component", "matcher").Str("policy", string(policy)).Logger(),
		now:    now,
	}
}

// Run matches every pending request, oldest first, to the eligible host with
// the lowest id. Requests with no eligible host stay pending. Each request is
// its own unit of work: a persistence failure leaves that request pending and
// the run continues. The returned matches are in creation order.
func (m *Matcher) Run(ctx context.Context) ([]models.MatchDetails, error) {
	pending, err := m.store.Requests().ListPendingRequests(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list pending requests")
	}

	var (
		created []models.MatchDetails
		ledger  = newLedger(m.policy)
		asOf    = m.now()
	)
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		candidates, err := m.store.Availability().ListEligibleHosts(ctx, req.Location, req.NumGuests, asOf)
		if err != nil {
			m.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to list eligible hosts")
			continue
		}
		host, ok := m.pick(ledger, candidates, req)
		if !ok {
			m.logger.Debug().Str("request_id", req.ID).Str("location", req.Location).Msg("no eligible host")
			continue
		}

		details, err := m.materialize(ctx, req, host)
		switch {
		case apperrors.IsConflict(err):
			m.logger.Debug().Str("request_id", req.ID).Msg("request already matched by a concurrent run")
			continue
		case err != nil:
			m.logger.Error().Err(err).Str("request_id", req.ID).Str("host_id", host.Host.ID).Msg("failed to create match")
			continue
		}

		ledger.take(host.Host.ID, req.NumGuests)
		created = append(created, details)
		m.logger.Info().
			Str("match_id", details.Match.ID).
			Str("request_id", req.ID).
			Str("host_id", host.Host.ID).
			Msg("match created")
	}
	return created, nil
}

func (m *Matcher) pick(l *ledger, candidates []models.HostCandidate, req models.Request) (models.HostCandidate, bool) {
	for _, c := range candidates {
		if c.Host.Role != models.RoleHost || c.Host.Location != req.Location {
			continue
		}
		if !c.Availability.Eligible(req.NumGuests) {
			continue
		}
		if !l.fits(c.Host.ID, c.Availability.Capacity, req.NumGuests) {
			continue
		}
		return c, true
	}
	return models.HostCandidate{}, false
}

// materialize creates the match and flips the request to matched atomically.
func (m *Matcher) materialize(ctx context.Context, req models.Request, host models.HostCandidate) (models.MatchDetails, error) {
	var details models.MatchDetails
	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		match, err := tx.Matches().CreateMatch(ctx, req.ID, host.Host.ID, m.now())
		if err != nil {
			return err
		}
		if err := tx.Requests().MarkRequestMatched(ctx, req.ID); err != nil {
			return err
		}
		req.Status = models.RequestMatched

		student, err := tx.Accounts().GetAccount(ctx, req.StudentID)
		if err != nil {
			return errors.Wrapf(err, "load student %s", req.StudentID)
		}
		details = models.MatchDetails{Match: match, Request: req, Host: host.Host, Student: student}
		return nil
	})
	return details, err
}
