package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ErrResourceNotFound is returned (possibly wrapped) by a ResourceFunc when
// the targeted resource does not exist.
var ErrResourceNotFound = errors.New("httpx: resource not found")

// PolicyAuthorizer decides a named policy for a claim set.
type PolicyAuthorizer interface {
	Authorize(ctx context.Context, claims claimset.ClaimSet, policy string, opts ...authz.EvalOption) authz.Decision
}

// ResourceFunc loads the resource a request targets for ownership checks.
// An error wrapping ErrResourceNotFound ends the request with a 404; any
// other error is logged and answered with a 500.
type ResourceFunc func(r *http.Request) (any, error)

// RequirePolicy lets the request through only when policy allows the
// authenticated caller. It must run after AuthnMiddleware. Denials get a
// generic 403; the failing requirements are logged by the engine.
func RequirePolicy(a PolicyAuthorizer, policy string) Middleware {
	return RequirePolicyOn(a, policy, nil)
}

// RequirePolicyOn is RequirePolicy with a resource passed to the engine.
func RequirePolicyOn(a PolicyAuthorizer, policy string, resource ResourceFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteUnauthenticated(w)
				return
			}

			var opts []authz.EvalOption
			if resource != nil {
				res, err := resource(r)
				if err != nil {
					if errors.Is(err, ErrResourceNotFound) {
						WriteError(w, http.StatusNotFound, "not_found", "The requested resource does not exist.")
						return
					}
					slogx.FromContext(r.Context()).Error("failed to load resource",
						slog.String("policy", policy), slog.Any("error", err))
					WriteError(w, http.StatusInternalServerError, "server_error", "An internal error occurred.")
					return
				}
				opts = append(opts, authz.WithResource(res))
			}

			if !a.Authorize(r.Context(), claims, policy, opts...).Allowed {
				WriteForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteForbidden writes the generic 403 body.
func WriteForbidden(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, "forbidden", "You are not allowed to perform this action.")
}
