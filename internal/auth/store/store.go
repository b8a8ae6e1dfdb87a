package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and so a
// transaction scoped store cannot start another transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SetDisabled flips the disabled flag and bumps updated_at.
	SetDisabled(ctx context.Context, userID string, disabled bool) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ConsumeRefreshToken revokes the record only if it is active at now and
	// belongs to userID, returning it as it was before revocation. Anything
	// else returns ErrNotFound and changes nothing.
	ConsumeRefreshToken(ctx context.Context, hash, userID string, now time.Time) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens revokes every active record of a user.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// RefreshStore is the refresh token storage the session service rotates
// against. The sqlite store serves it through RefreshStoreAdapter; the redis
// driver implements it directly.
type RefreshStore interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RotateRefreshToken atomically revokes the active record for hash and
	// stores next in its place. next inherits the predecessor's SessionID and
	// must name the same UserID. Concurrent rotations of one hash see exactly
	// one success; the rest get ErrNotFound.
	RotateRefreshToken(ctx context.Context, hash string, next domain.RefreshToken, now time.Time) (domain.RefreshToken, error)

	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens ends every session of a user. It is the
	// response to a spent refresh token being presented again.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
