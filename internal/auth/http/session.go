package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// SessionHandler serves the login, refresh and revoke endpoints.
type SessionHandler struct {
	Sessions *service.SessionService
}

// HandleLogin serves POST /v1/auth/login.
// Any bad username, password or disabled account gets the same 401.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Sessions.Login(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("login failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRefresh serves POST /v1/auth/refresh. The refresh token is single
// use: a successful call revokes it and returns its successor.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Token == "" || req.RefreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Sessions.Refresh(ctx, req.Token, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authsdk.ErrInvalidRefresh.WriteError(w)
			return
		}
		log.Error("refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRevoke serves POST /v1/auth/revoke. Unknown and already revoked
// tokens also get 204 so the endpoint reveals nothing about which tokens exist.
func (h *SessionHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RevokeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Sessions.Revoke(ctx, req.RefreshToken); err != nil {
		log.Error("revoke failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func tokenResponse(pair domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		Token:        pair.AccessToken,
		ExpiresAt:    pair.ExpiresAt,
		RefreshToken: pair.RefreshToken,
		Subject:      subjectOf(pair.User),
	}
}

func subjectOf(u domain.User) authsdk.Subject {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return authsdk.Subject{
		ID:    u.ID,
		Name:  name,
		Email: u.Email,
		Roles: roles,
	}
}
