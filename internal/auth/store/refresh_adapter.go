package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
)

// RefreshStoreAdapter adapts a Store to the RefreshStore interface, running
// rotation as one transaction.
type RefreshStoreAdapter struct {
	store Store
}

// NewRefreshStoreAdapter creates a new adapter that implements RefreshStore
// using a Store.
func NewRefreshStoreAdapter(store Store) *RefreshStoreAdapter {
	return &RefreshStoreAdapter{store: store}
}

var _ RefreshStore = (*RefreshStoreAdapter)(nil)

func (a *RefreshStoreAdapter) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	return a.store.RefreshTokens().CreateRefreshToken(ctx, t)
}

func (a *RefreshStoreAdapter) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return a.store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
}

// RotateRefreshToken consumes the predecessor and inserts next in the same
// transaction, so a failed insert leaves the predecessor active.
func (a *RefreshStoreAdapter) RotateRefreshToken(
	ctx context.Context,
	hash string,
	next domain.RefreshToken,
	now time.Time,
) (domain.RefreshToken, error) {
	err := a.store.WithTx(ctx, func(tx Tx) error {
		prev, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, hash, next.UserID, now)
		if err != nil {
			return err
		}
		next.SessionID = prev.SessionID
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return next, nil
}

func (a *RefreshStoreAdapter) RevokeRefreshToken(ctx context.Context, hash string) error {
	return a.store.RefreshTokens().RevokeRefreshToken(ctx, hash)
}

func (a *RefreshStoreAdapter) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	return a.store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

func (a *RefreshStoreAdapter) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return a.store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
}
