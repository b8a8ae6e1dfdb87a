package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// SessionService turns verified credentials into token pairs and rotates
// them on refresh.
type SessionService struct {
	Credentials  *CredentialVerifier
	Tokens       *TokenService
	Store        store.Store
	RefreshStore store.RefreshStore
	RefreshTTL   time.Duration
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Login verifies the credentials and starts a new session.
func (s *SessionService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Credentials.Verify(ctx, username, password)
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, err := s.Tokens.Issue(u, u.Roles, nil, 0)
	if err != nil {
		l.Error("failed to issue access token", slog.Any("error", err), slog.String("user_id", u.ID))
		return domain.TokenPair{}, err
	}

	refreshOpaque, err := s.Tokens.GenerateOpaqueSecret(cryptox.SecretSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.SecretDigest(refreshOpaque),
		SessionID: idx.New().String(),
		ExpiresAt: access.IssuedAt.Add(s.refreshTTL()),
	}
	if err := s.RefreshStore.CreateRefreshToken(ctx, rt); err != nil {
		l.Error("failed to store refresh token", slog.Any("error", err), slog.String("user_id", u.ID))
		return domain.TokenPair{}, err
	}

	l.Info("login succeeded", slog.String("user_id", u.ID), slog.String("session_id", rt.SessionID))
	return pair(access, refreshOpaque, u), nil
}

// Refresh exchanges a refresh token for a new pair. token is the access
// token being replaced; it may be expired but must otherwise be valid and
// name the same subject as the refresh record. The old refresh token is
// revoked in the same atomic step that stores the new one, so of several
// concurrent refreshes with one value exactly one succeeds. Presenting a
// refresh token that is already revoked revokes every session of its owner.
func (s *SessionService) Refresh(ctx context.Context, token, refreshOpaque string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if refreshOpaque == "" {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	claims, err := s.Tokens.ValidateExpired(token)
	if err != nil {
		l.Info("refresh rejected", slog.String("reason", "access_token"), slog.Any("error", err))
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh rejected", slog.String("reason", "unknown_subject"))
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, err
	}
	if u.Disabled {
		l.Info("refresh rejected", slog.String("reason", "disabled"), slog.String("user_id", u.ID))
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	now := s.Tokens.now().Truncate(time.Second)
	nextOpaque, err := s.Tokens.GenerateOpaqueSecret(cryptox.SecretSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	next := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.SecretDigest(nextOpaque),
		ExpiresAt: now.Add(s.refreshTTL()),
	}

	// Rotation decides the race; only the winner gets an access token.
	hash := cryptox.SecretDigest(refreshOpaque)
	stored, err := s.RefreshStore.RotateRefreshToken(ctx, hash, next, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh rejected", slog.String("reason", "refresh_token"), slog.String("user_id", u.ID))
			s.revokeOnReuse(ctx, hash)
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		l.Error("failed to rotate refresh token", slog.Any("error", err), slog.String("user_id", u.ID))
		return domain.TokenPair{}, err
	}

	access, err := s.Tokens.Issue(u, u.Roles, nil, 0)
	if err != nil {
		l.Error("failed to issue access token", slog.Any("error", err), slog.String("user_id", u.ID))
		return domain.TokenPair{}, err
	}

	l.Info("refresh succeeded", slog.String("user_id", u.ID), slog.String("session_id", stored.SessionID))
	return pair(access, nextOpaque, u), nil
}

// revokeOnReuse ends every session of the record's owner when hash names a
// refresh token that was already spent or revoked.
func (s *SessionService) revokeOnReuse(ctx context.Context, hash string) {
	l := slogx.FromContext(ctx)

	rec, err := s.RefreshStore.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("failed to look up refresh token", slog.Any("error", err))
		}
		return
	}
	if !rec.Revoked {
		return
	}

	if err := s.RefreshStore.RevokeAllUserRefreshTokens(ctx, rec.UserID); err != nil {
		l.Error("failed to revoke sessions after refresh token reuse",
			slog.Any("error", err), slog.String("user_id", rec.UserID))
		return
	}
	l.Warn("refresh token reuse detected, all sessions revoked",
		slog.String("user_id", rec.UserID), slog.String("session_id", rec.SessionID))
}

// Revoke revokes a refresh token by its opaque value. Unknown values are
// not an error so the call can be repeated.
func (s *SessionService) Revoke(ctx context.Context, refreshOpaque string) error {
	if refreshOpaque == "" {
		return nil
	}
	err := s.RefreshStore.RevokeRefreshToken(ctx, cryptox.SecretDigest(refreshOpaque))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Profile returns the stored user behind an authenticated subject.
func (s *SessionService) Profile(ctx context.Context, subject string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, subject)
}

func pair(access Token, refreshOpaque string, u domain.User) domain.TokenPair {
	return domain.TokenPair{
		AccessToken:  access.Value,
		TokenID:      access.ID,
		ExpiresAt:    access.ExpiresAt,
		RefreshToken: refreshOpaque,
		User:         u,
	}
}
