package identity

import "context"

type ctxKey string

const principalKey ctxKey = "jeevancare.principal"

// Principal is the verified caller identity supplied by the auth middleware.
type Principal struct {
	UserID string
	Role   string
}

// WithPrincipal stores the caller identity in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the caller identity if present.
func FromContext(ctx context.Context) (Principal, bool) {
	val := ctx.Value(principalKey)
	if val == nil {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok && p.UserID != ""
}
