package domain

import "time"

// TokenPair is what a successful login or refresh hands back: the signed
// access token and the opaque refresh token that can be rotated for a new
// pair.
type TokenPair struct {
	AccessToken  string
	TokenID      string
	ExpiresAt    time.Time
	RefreshToken string
	User         User
}

// RefreshToken models the stored refresh token record. The raw opaque value
// is never stored, only its fingerprint.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	SessionID string // persists across rotations of the same login
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the record can still be exchanged at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
