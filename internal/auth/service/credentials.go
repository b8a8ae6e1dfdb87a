package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CredentialVerifier checks a username and password against the user store.
type CredentialVerifier struct {
	Store store.Store
}

// Verify returns the user when password matches. Every failure the caller
// can trigger (unknown user, wrong password, disabled account) is reported
// as ErrInvalidCredentials; the specific cause only reaches the log.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (domain.User, error) {
	l := slogx.FromContext(ctx).With(slog.String("username", username))

	u, err := v.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("failed to load user", slog.Any("error", err))
			return domain.User{}, err
		}
		// Spend the same time as a real comparison.
		_ = cryptox.VerifyPassword(password, cryptox.DummyHash())
		l.Info("login rejected", slog.String("reason", "unknown_user"))
		return domain.User{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		reason := "password_mismatch"
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			reason = "invalid_hash"
		}
		l.Info("login rejected", slog.String("reason", reason), slog.String("user_id", u.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	if u.Disabled {
		l.Info("login rejected", slog.String("reason", "disabled"), slog.String("user_id", u.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	return u, nil
}
