package transport

import "context"

type tokenCtxKey struct{}

// ContextWithToken overrides the bearer credential for requests made
// with the returned context. Used for calls that must outlive the
// in-memory session, such as best-effort remote logout after local
// clearing.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// TokenFromContext returns the bearer override, or "".
func TokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenCtxKey{}).(string)
	return v
}
