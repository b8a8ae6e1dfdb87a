package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, createRefreshToken,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.SessionID,
		toMillis(t.ExpiresAt),
		now,
		now,
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.db.QueryRowContext(ctx, getRefreshTokenByHash, hash))
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) ConsumeRefreshToken(
	ctx context.Context,
	hash, userID string,
	now time.Time,
) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, consumeRefreshToken, toMillis(now), hash, userID, toMillis(now))
	t, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	// RETURNING reports the row after the update.
	t.Revoked = false
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, revokeRefreshToken, toMillis(time.Now()), hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, revokeAllUserRefreshTokens, toMillis(time.Now()), userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredRefreshTokens, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
