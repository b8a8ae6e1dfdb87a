package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ProfileHandler serves the authenticated profile endpoints.
type ProfileHandler struct {
	Sessions *service.SessionService
}

// HandleMe serves GET /v1/me: the caller's stored profile plus every claim
// their token carries.
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrUnauthenticated.WriteError(w)
		return
	}

	user, err := h.Sessions.Profile(ctx, claims.Subject())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Token outlived its user.
			authsdk.ErrUnauthenticated.WriteError(w)
			return
		}
		log.Error("failed to load user", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		Subject: subjectOf(user),
		Claims:  claims.All(),
	})
}

// HandleUser serves GET /v1/users/{id}. It sits behind the OwnerOnly
// policy, so callers only ever see themselves.
func (h *ProfileHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Sessions.Profile(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("failed to load user", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, subjectOf(user))
}

// userResource loads the user named in the path for ownership checks.
func (h *ProfileHandler) userResource(r *http.Request) (any, error) {
	user, err := h.Sessions.Profile(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", r.PathValue("id"), httpx.ErrResourceNotFound)
	}
	return user, err
}
