package authz

import (
	"context"
	"net/http"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	roleKey      contextKey = "role"
)

// WithIdentity stores the caller's account id and role on the context.
func WithIdentity(ctx context.Context, accountID string, role models.Role) context.Context {
	if accountID != "" {
		ctx = context.WithValue(ctx, accountIDKey, accountID)
	}
	if models.IsValidRole(role) {
		ctx = context.WithValue(ctx, roleKey, role)
	}
	return ctx
}

func AccountIDFromRequest(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(accountIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func RoleFromRequest(r *http.Request) (models.Role, bool) {
	role, ok := r.Context().Value(roleKey).(models.Role)
	if !ok || !models.IsValidRole(role) {
		return "", false
	}
	return role, true
}
