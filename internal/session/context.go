package session

import "context"

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func FromContext(ctx context.Context) *Principal {
	v := ctx.Value(ctxKeyPrincipal)
	if v == nil {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// TokenFromContext returns the raw session token to forward upstream.
func TokenFromContext(ctx context.Context) string {
	if p := FromContext(ctx); p != nil {
		return p.Token
	}
	return ""
}
