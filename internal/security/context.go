package security

import "context"

type claimsKey struct{}

// WithClaims stores verified claims on the request context.
func WithClaims(ctx context.Context, c *UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*UserClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*UserClaims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated user id, or 0 when the request
// is anonymous.
func UserIDFromContext(ctx context.Context) int32 {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return 0
}
