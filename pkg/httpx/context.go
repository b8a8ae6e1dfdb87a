package httpx

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// WithClaims attaches the authenticated claim set to ctx.
func WithClaims(ctx context.Context, c claimset.ClaimSet) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// ClaimsFromContext returns the claim set AuthnMiddleware attached, if any.
func ClaimsFromContext(ctx context.Context) (claimset.ClaimSet, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(claimset.ClaimSet)
	if !ok || c.IsZero() {
		return claimset.ClaimSet{}, false
	}
	return c, true
}
