package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Opaque secret lengths in bytes, before base64url encoding.
const (
	SecretSize128 = 16 // key ids
	SecretSize256 = 32 // refresh tokens
)

// ErrSecretSize is returned by NewSecret for a non-positive length.
var ErrSecretSize = errors.New("cryptox: secret size must be positive")

// NewSecret returns size random bytes encoded as unpadded base64url. Refresh
// tokens are secrets of SecretSize256; the value is handed to the client once
// and only its digest is stored.
func NewSecret(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrSecretSize, size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustNewSecret is NewSecret for start-up paths where a failing random
// source leaves nothing to recover.
func MustNewSecret(size int) string {
	secret, err := NewSecret(size)
	if err != nil {
		panic(err)
	}
	return secret
}

// SecretDigest is the lookup key a secret is stored under: the unpadded
// base64url SHA-256 of its encoded form, always 43 characters.
func SecretDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
