package auth

import "context"

type contextKey struct{ name string }

var (
	claimsKey        = contextKey{"claims"}
	correlationIDKey = contextKey{"correlation_id"}
)

// WithClaims returns a context carrying the request principal's claims.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFrom returns the claims from context and true if set.
func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

// WithCorrelationID returns a context carrying the request correlation id,
// propagated into every event emitted while handling the request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFrom returns the correlation id from context, or "" if unset.
func CorrelationIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
