package httpx

import (
	"context"

	"github.com/interviewlens/lens-api/internal/domain/model"
)

// userKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type userKey struct{}

// SetUserInContext returns a child context that carries the authenticated user.
// If user is nil, the original ctx is returned unchanged.
func SetUserInContext(ctx context.Context, user *model.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, user)
}

// GetUserFromContext returns the authenticated user from context and a boolean
// indicating presence.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	if user, ok := ctx.Value(userKey{}).(*model.User); ok && user != nil {
		return user, true
	}
	return nil, false
}
