package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// TokenValidator turns a bearer token into the claim set it carries.
type TokenValidator interface {
	Validate(token string) (claimset.ClaimSet, error)
}

// AuthnMiddleware requires a valid bearer token and stores its claim set in
// the request context. Every failure gets the same 401; the cause is logged.
func AuthnMiddleware(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				WriteUnauthenticated(w)
				return
			}

			claims, err := v.Validate(raw)
			if err != nil {
				log.Info("bearer token rejected", "err", err)
				WriteUnauthenticated(w)
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = slogx.With(ctx, "sub", claims.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteUnauthenticated writes the RFC 6750 style 401 with a generic body.
func WriteUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, "unauthenticated", "Authentication is required.")
}
