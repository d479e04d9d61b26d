package http

import (
	"context"

	"github.com/opentrusty/accessctl/internal/authz"
)

type contextKey string

const authKey contextKey = "authentication"

// GetAuthentication retrieves the caller's authentication from context,
// nil when the request is anonymous.
func GetAuthentication(ctx context.Context) authz.Authentication {
	if auth, ok := ctx.Value(authKey).(authz.Authentication); ok {
		return auth
	}
	return nil
}

// WithAuthentication attaches the caller's authentication to the context.
func WithAuthentication(ctx context.Context, auth authz.Authentication) context.Context {
	return context.WithValue(ctx, authKey, auth)
}
