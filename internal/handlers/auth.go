package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/accounts"
	"github.com/anywhere-israel/hostmatch/internal/authz"
	"github.com/anywhere-israel/hostmatch/internal/models"
)

type AuthHandler struct {
	accounts *accounts.Service
	logger   zerolog.Logger
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func NewAuthHandler(svc *accounts.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: svc,
		logger:   logger.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req accounts.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err, "Failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, account, err := h.accounts.Login(r.Context(), req.Phone, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeError(w, h.logger, err, "Failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"account": account,
	})
}

type ProfileHandler struct {
	accounts *accounts.Service
	logger   zerolog.Logger
}

func NewProfileHandler(svc *accounts.Service, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		accounts: svc,
		logger:   logger.With().Str("handler", "profile").Logger(),
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := selfFromPath(w, r, "accountID")
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := selfFromPath(w, r, "accountID")
	if !ok {
		return
	}
	var patch models.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	account, err := h.accounts.UpdateProfile(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// callerID returns the authenticated account id or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := authz.AccountIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing account context", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}
