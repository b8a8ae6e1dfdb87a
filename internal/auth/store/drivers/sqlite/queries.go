package sqlite

import (
	"context"
	"database/sql"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repo runs the same
// queries inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, username, name, email, password_hash, roles, birthdate, department, disabled, created_at, updated_at`

const (
	getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	createUser = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateUserDisabled = `UPDATE users SET disabled = ?, updated_at = ? WHERE id = ?`

	countUsers = `SELECT COUNT(*) FROM users`
)

const refreshTokenColumns = `id, user_id, token_hash, session_id, expires_at, revoked, created_at, updated_at`

const (
	createRefreshToken = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`

	getRefreshTokenByHash = `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = ?`

	// The predicate is the whole rotation guard: a second consumer of the
	// same hash matches no row.
	consumeRefreshToken = `UPDATE refresh_tokens
SET revoked = 1, updated_at = ?
WHERE token_hash = ? AND user_id = ? AND revoked = 0 AND expires_at > ?
RETURNING ` + refreshTokenColumns

	revokeRefreshToken = `UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ?`

	revokeAllUserRefreshTokens = `UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND revoked = 0`

	deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= ?`
)
