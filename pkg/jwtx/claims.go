package jwtx

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default lifetimes. Services override them through configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// MaxLeeway bounds the configurable clock skew tolerance.
	MaxLeeway = 5 * time.Minute
)

// Claims are the access-token claims. The registered claims carry identity
// and lifetime; everything else about the principal travels in the "clm"
// multimap so repeated claim types (roles) survive the round trip.
type Claims struct {
	jwt.RegisteredClaims

	// Claims maps claim type to values, e.g. "role": ["Admin", "User"].
	Claims map[string][]string `json:"clm,omitempty"`
}

// NewClaims builds claims for set, issued at now and expiring after ttl.
func NewClaims(
	set claimset.ClaimSet,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   set.Subject(),
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Claims: set.All(),
	}
}

// NewJTI returns a fresh random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ClaimSet converts the token claims back into an immutable ClaimSet.
func (c *Claims) ClaimSet() claimset.ClaimSet {
	return claimset.New(c.Subject, c.Claims)
}

// ValidateIssuer checks the issuer matches expected exactly.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry requires exp to be present and now to be strictly before it.
func (c *Claims) ValidateExpiry(now time.Time) error {
	return c.ValidateExpiryWithLeeway(now, 0)
}

// ValidateExpiryWithLeeway extends the validity window by leeway to absorb
// clock skew between issuer and validator.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrMalformed
	}

	if !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	// Tokens from this issuer carry no nbf, but honour it when present.
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
