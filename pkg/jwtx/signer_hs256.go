package jwtx

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACKeySize is the minimum HS256 key length in bytes (256 bits).
const MinHMACKeySize = 32

// HS256Signer signs tokens with a shared HMAC-SHA256 secret.
type HS256Signer struct {
	kid string
	key []byte
}

func newHS256Signer(kid string, key []byte) (*HS256Signer, error) {
	if len(key) < MinHMACKeySize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrWeakKey, len(key), MinHMACKeySize)
	}
	return &HS256Signer{kid: kid, key: slices.Clone(key)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// Validate checks the key is still long enough.
func (s *HS256Signer) Validate() error {
	if len(s.key) < MinHMACKeySize {
		return ErrWeakKey
	}
	return nil
}
