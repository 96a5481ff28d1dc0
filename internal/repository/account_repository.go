package repository

import (
	"context"
	"strings"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

const accountColumns = `id, role, name, phone, password_hash, about_me, preferences, location, created_at, updated_at`

type accountRepository struct {
	q queryer
}

func (r *accountRepository) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const query = `
		INSERT INTO accounts (role, name, phone, password_hash, about_me, preferences, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns

	row := r.q.QueryRowContext(ctx, query,
		account.Role,
		strings.TrimSpace(account.Name),
		strings.TrimSpace(account.Phone),
		account.PasswordHash,
		account.AboutMe,
		account.Preferences,
		strings.TrimSpace(account.Location),
	)
	created, err := scanAccount(row)
	return created, translate(err, "create account")
}

func (r *accountRepository) GetAccount(ctx context.Context, id string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.q.QueryRowContext(ctx, query, id))
	return account, translate(err, "account "+id)
}

func (r *accountRepository) GetAccountByPhone(ctx context.Context, phone string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	account, err := scanAccount(r.q.QueryRowContext(ctx, query, strings.TrimSpace(phone)))
	return account, translate(err, "account with phone "+phone)
}

func (r *accountRepository) ListAccounts(ctx context.Context, role models.Role) ([]models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE role = $1 ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, role)
	if err != nil {
		return nil, translate(err, "list accounts")
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, translate(err, "scan account")
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list accounts")
	}
	return accounts, nil
}

func (r *accountRepository) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (models.Account, error) {
	const query = `
		UPDATE accounts
		SET name        = COALESCE($2, name),
		    about_me    = COALESCE($3, about_me),
		    preferences = COALESCE($4, preferences),
		    location    = COALESCE($5, location),
		    updated_at  = now()
		WHERE id = $1
		RETURNING ` + accountColumns

	row := r.q.QueryRowContext(ctx, query, id,
		nullableString(patch.Name),
		nullableString(patch.AboutMe),
		nullableString(patch.Preferences),
		nullableString(patch.Location),
	)
	account, err := scanAccount(row)
	return account, translate(err, "account "+id)
}

func scanAccount(s scanner) (models.Account, error) {
	var account models.Account
	err := s.Scan(
		&account.ID,
		&account.Role,
		&account.Name,
		&account.Phone,
		&account.PasswordHash,
		&account.AboutMe,
		&account.Preferences,
		&account.Location,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return strings.TrimSpace(*v)
}
