package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// Token is a signed access token and what went into it.
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    claimset.ClaimSet
}

// TokenService issues and validates access tokens.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration

	// Now overrides the issuing clock. Validation uses the clock the
	// KeyManager was built with.
	Now func() time.Time

	Metrics *TokenMetrics
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ClaimsFor builds the claim set describing user. extra is merged in after
// the standard claims; it can add values but never replace the subject.
func ClaimsFor(user domain.User, roles []string, extra map[string][]string) claimset.ClaimSet {
	name := user.Name
	if name == "" {
		name = user.Username
	}

	b := claimset.NewBuilder(user.ID).
		Add(claimset.Name, name).
		Add(claimset.Email, user.Email).
		Add(claimset.Role, roles...).
		Add(claimset.BirthDate, user.BirthDate).
		Add(claimset.Department, user.Department)
	for typ, values := range extra {
		b.Add(typ, values...)
	}
	return b.Build()
}

// Issue signs an access token for user carrying roles and extra claims.
// A non-positive ttl means the configured AccessTTL.
func (s *TokenService) Issue(
	user domain.User,
	roles []string,
	extra map[string][]string,
	ttl time.Duration,
) (Token, error) {
	if user.ID == "" {
		return Token{}, fmt.Errorf("issue token: user has no id")
	}
	if ttl <= 0 {
		ttl = s.AccessTTL
	}
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	set := ClaimsFor(user, roles, extra)
	now := s.now().Truncate(time.Second)
	claims := jwtx.NewClaims(set, ttl, s.Issuer, s.Audience, now)

	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return Token{}, fmt.Errorf("issue token: no signing key available")
	}
	value, err := signer.Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	s.Metrics.issued()

	return Token{
		Value:     value,
		ID:        claims.ID,
		IssuedAt:  now,
		ExpiresAt: claims.ExpiresAt.Time,
		Claims:    set,
	}, nil
}

// Validate verifies token and returns the claim set it carries. The checks
// run signature, issuer, audience then expiry and stop at the first
// failure; the error is one of the jwtx sentinels.
func (s *TokenService) Validate(token string) (claimset.ClaimSet, error) {
	claims, err := s.KeyManager.Verifier.Verify(token)
	s.Metrics.validated(err)
	if err != nil {
		return claimset.ClaimSet{}, err
	}
	return claims.ClaimSet(), nil
}

// ValidateExpired is Validate without the expiry check. Only refresh uses it
// to bind a refresh request to the subject of the token being replaced.
func (s *TokenService) ValidateExpired(token string) (claimset.ClaimSet, error) {
	claims, err := s.KeyManager.Verifier.VerifyIgnoringExpiry(token)
	if err != nil {
		return claimset.ClaimSet{}, err
	}
	return claims.ClaimSet(), nil
}

// GenerateOpaqueSecret returns byteLength random bytes, base64url encoded.
func (s *TokenService) GenerateOpaqueSecret(byteLength int) (string, error) {
	return cryptox.NewSecret(byteLength)
}
