package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextEncoding = "22P02"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type postgresStore struct {
	db   *sql.DB
	q    queryer
	inTx bool
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) Accounts() AccountRepository {
	return &accountRepository{q: s.q}
}

func (s *postgresStore) Availability() AvailabilityRepository {
	return &availabilityRepository{q: s.q}
}

func (s *postgresStore) Requests() RequestRepository {
	return &requestRepository{q: s.q}
}

func (s *postgresStore) Matches() MatchRepository {
	return &matchRepository{q: s.q}
}

func (s *postgresStore) Notifications() NotificationRepository {
	return &notificationRepository{q: s.q}
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&postgresStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// translate maps driver errors onto apperrors kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("%s", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return apperrors.Conflict("%s: %s", what, pqErr.Constraint)
		case foreignKeyViolation:
			return apperrors.NotFound("%s: %s", what, pqErr.Constraint)
		case invalidTextEncoding:
			// malformed uuid, treated like any other unknown id
			return apperrors.NotFound("%s", what)
		}
	}
	return errors.Wrap(err, what)
}
