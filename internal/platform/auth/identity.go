package auth

import "context"

type contextKey string

const identityContextKey contextKey = "github.com/maisonceleste/api/internal/platform/auth/identity"

// Identity describes the authenticated caller attached to a request.
type Identity struct {
	Subject string
	Email   string
	Admin   bool
}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity when a verified token was presented.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
