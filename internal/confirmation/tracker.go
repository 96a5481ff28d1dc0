// Package confirmation drives a match through awaiting, confirmed and expired.
package confirmation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

type Tracker struct {
	store  repository.Store
	window time.Duration
	logger zerolog.Logger
}

func NewTracker(store repository.Store, window time.Duration, logger zerolog.Logger) *Tracker {
	if window <= 0 {
		window = models.DefaultConfirmationWindow
	}
	return &Tracker{
		store:  store,
		window: window,
		logger: logger.With().Str("component", "confirmation").Logger(),
	}
}

// Result is the match after a confirmation and whether this call completed it.
type Result struct {
	Match models.MatchDetails
	// Completed is true only for the call that set the second flag.
	Completed bool
}

func (t *Tracker) ConfirmHost(ctx context.Context, matchID string) (Result, error) {
	return t.confirm(ctx, matchID, models.PartyHost)
}

func (t *Tracker) ConfirmStudent(ctx context.Context, matchID string) (Result, error) {
	return t.confirm(ctx, matchID, models.PartyStudent)
}

func (t *Tracker) confirm(ctx context.Context, matchID string, party models.Party) (Result, error) {
	var result Result
	err := t.store.WithTx(ctx, func(tx repository.Store) error {
		match, completed, err := tx.Matches().Confirm(ctx, matchID, party)
		if err != nil {
			return err
		}
		result.Completed = completed
		result.Match, err = repository.LoadMatchDetails(ctx, tx, match)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	t.logger.Info().
		Str("match_id", matchID).
		Str("party", string(party)).
		Str("status", string(result.Match.Match.Status)).
		Bool("completed", result.Completed).
		Msg("match confirmation recorded")
	return result, nil
}

// ExpireStale moves every awaiting match older than the window at now to
// expired and returns those matches. Already expired or confirmed matches are
// never returned, so repeated calls are no-ops.
func (t *Tracker) ExpireStale(ctx context.Context, now time.Time) ([]models.MatchDetails, error) {
	cutoff := now.Add(-t.window)

	var out []models.MatchDetails
	err := t.store.WithTx(ctx, func(tx repository.Store) error {
		expired, err := tx.Matches().ExpireStale(ctx, cutoff)
		if err != nil {
			return errors.Wrap(err, "expire stale matches")
		}
		out = make([]models.MatchDetails, 0, len(expired))
		for _, m := range expired {
			details, err := repository.LoadMatchDetails(ctx, tx, m)
			if err != nil {
				return err
			}
			out = append(out, details)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) > 0 {
		t.logger.Info().Int("expired", len(out)).Time("cutoff", cutoff).Msg("stale matches expired")
	}
	return out, nil
}

// Get loads a match with its request and both parties.
func (t *Tracker) Get(ctx context.Context, matchID string) (models.MatchDetails, error) {
	match, err := t.store.Matches().GetMatch(ctx, matchID)
	if err != nil {
		return models.MatchDetails{}, err
	}
	return repository.LoadMatchDetails(ctx, t.store, match)
}

// Window is the confirmation window in effect.
func (t *Tracker) Window() time.Duration {
	return t.window
}
