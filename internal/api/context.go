package api

import (
	"context"
	"errors"
)

// userIDContextKey is the context key for the authenticated user id.
type userIDContextKey struct{}

// ErrNoUserInContext indicates no user id was found in the context.
var ErrNoUserInContext = errors.New("no user id in context")

// WithUserID returns a new context with the user id attached.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the user id from the context.
// Returns ErrNoUserInContext if not present or empty.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoUserInContext
	}
	return id, nil
}

// MustUserIDFromContext extracts the user id or panics.
// Use only when middleware guarantees its presence.
func MustUserIDFromContext(ctx context.Context) string {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		panic("user id not in context: middleware misconfiguration")
	}
	return id
}
