// Package accounts handles registration, login and profile edits.
package accounts

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/authz"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

// ErrInvalidCredentials is returned by Login for an unknown phone or a wrong password.
var ErrInvalidCredentials = stderrors.New("invalid phone or password")

const minPasswordLength = 8

type Registration struct {
	Name            string      `json:"name"`
	Phone           string      `json:"phone"`
	Role            models.Role `json:"role"`
	Password        string      `json:"password"`
	ConfirmPassword string      `json:"confirm_password"`
	Location        string      `json:"location"`
}

type Service struct {
	accounts repository.AccountRepository
	tokens   *authz.TokenIssuer
	logger   zerolog.Logger
}

func NewService(accounts repository.AccountRepository, tokens *authz.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger.With().Str("component", "accounts").Logger(),
	}
}

func (s *Service) Register(ctx context.Context, reg Registration) (models.Account, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Phone = strings.TrimSpace(reg.Phone)
	switch {
	case reg.Name == "":
		return models.Account{}, apperrors.Validation("name is required")
	case reg.Phone == "":
		return models.Account{}, apperrors.Validation("phone is required")
	case !models.IsValidRole(reg.Role):
		return models.Account{}, apperrors.Validation("role must be student or host")
	case len(reg.Password) < minPasswordLength:
		return models.Account{}, apperrors.Validation("password must be at least %d characters", minPasswordLength)
	case reg.Password != reg.ConfirmPassword:
		return models.Account{}, apperrors.Validation("passwords do not match")
	}

	hash, err := authz.HashPassword(reg.Password)
	if err != nil {
		return models.Account{}, err
	}
	account, err := s.accounts.CreateAccount(ctx, models.Account{
		Role:         reg.Role,
		Name:         reg.Name,
		Phone:        reg.Phone,
		PasswordHash: hash,
		Location:     strings.TrimSpace(reg.Location),
	})
	if err != nil {
		return models.Account{}, err
	}
	s.logger.Info().Str("account_id", account.ID).Str("role", string(account.Role)).Msg("account registered")
	return account, nil
}

// Login checks the password and returns a signed token for the account.
func (s *Service) Login(ctx context.Context, phone, password string) (string, models.Account, error) {
	account, err := s.accounts.GetAccountByPhone(ctx, phone)
	if apperrors.IsNotFound(err) {
		return "", models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", models.Account{}, err
	}
	if !authz.CheckPassword(account.PasswordHash, password) {
		return "", models.Account{}, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(account)
	if err != nil {
		return "", models.Account{}, err
	}
	return token, account, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (models.Account, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Account{}, apperrors.Validation("name cannot be empty")
	}
	return s.accounts.UpdateProfile(ctx, id, patch)
}

// ByPhone resolves the sender of an inbound message.
func (s *Service) ByPhone(ctx context.Context, phone string) (models.Account, error) {
	return s.accounts.GetAccountByPhone(ctx, phone)
}
