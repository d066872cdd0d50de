package auth

import "context"

type contextKey int

const identityKey contextKey = iota

// WithIdentity stores the caller's external identity id in the context.
func WithIdentity(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, identityKey, externalID)
}

// Identity returns the external identity id of the caller, if the
// request carried a valid bearer token.
func Identity(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}
