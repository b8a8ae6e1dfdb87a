package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// AuthorizeHandler serves GET /v1/authorize/{policy}: 204 when the named
// policy allows the caller, 403 otherwise. Unknown policies deny.
type AuthorizeHandler struct {
	Engine httpx.PolicyAuthorizer
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrUnauthenticated.WriteError(w)
		return
	}

	if !h.Engine.Authorize(ctx, claims, r.PathValue("policy")).Allowed {
		authsdk.ErrForbidden.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
