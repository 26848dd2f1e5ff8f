// Package auth issues and verifies access tokens and carries the verified
// caller identity through a request context.
package auth

import "context"

// Identity is the caller decoded from a verified access token.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Role     string
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
