package interceptors

import (
	"context"
	"slices"
)

type contextKey struct{ name string }

var (
	accountIDKey = contextKey{"account_id"}
	usernameKey  = contextKey{"username"}
	rolesKey     = contextKey{"roles"}
	tokenIDKey   = contextKey{"token_id"}
)

// Identity is the caller asserted by a validated access token.
type Identity struct {
	AccountID string
	Username  string
	Roles     []string
	TokenID   string
}

// WithIdentity returns a context carrying id. Handlers read it via GetAccountID,
// GetUsername, GetRoles and HasRole.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, id.AccountID)
	ctx = context.WithValue(ctx, usernameKey, id.Username)
	ctx = context.WithValue(ctx, rolesKey, slices.Clone(id.Roles))
	ctx = context.WithValue(ctx, tokenIDKey, id.TokenID)
	return ctx
}

// GetAccountID returns the account_id from context and true if set; otherwise "", false.
func GetAccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountIDKey).(string)
	return v, ok
}

// GetUsername returns the username from context and true if set; otherwise "", false.
func GetUsername(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	return v, ok
}

// GetTokenID returns the access token's jti from context and true if set.
func GetTokenID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	return v, ok
}

// GetRoles returns a copy of the caller's active role names, or nil if unauthenticated.
func GetRoles(ctx context.Context) []string {
	v, _ := ctx.Value(rolesKey).([]string)
	return slices.Clone(v)
}

// HasRole reports whether the caller holds role.
func HasRole(ctx context.Context, role string) bool {
	v, _ := ctx.Value(rolesKey).([]string)
	return slices.Contains(v, role)
}
