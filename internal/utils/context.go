package utils

import (
	"context"

	"github.com/natours/natours-backend/internal/users"
)

type contextKey string

const (
	ContextUserKey   contextKey = "user"
	ContextUserIDKey contextKey = "userID"
)

// WithUser stores the authenticated user, and its ID, on ctx.
func WithUser(ctx context.Context, u *users.User) context.Context {
	ctx = context.WithValue(ctx, ContextUserKey, u)
	return context.WithValue(ctx, ContextUserIDKey, u.ID)
}

func UserFromContext(ctx context.Context) (*users.User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*users.User)
	return u, ok && u != nil
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}
