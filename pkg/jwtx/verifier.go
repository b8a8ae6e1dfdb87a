package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	// Verify runs every check: structure, signature, issuer, audience, expiry.
	Verify(token string) (Claims, error)

	// VerifyIgnoringExpiry runs the same checks but accepts an expired token.
	// Only the refresh flow should use it, to bind a refresh request to the
	// subject of the access token it replaces.
	VerifyIgnoringExpiry(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows clock skew when validating exp. Zero by default and
	// never more than MaxLeeway.
	Leeway time.Duration

	// Now is the validation clock. Defaults to time.Now in UTC.
	Now func() time.Time
}

func (o VerifyOptions) validate() error {
	if o.Leeway < 0 || o.Leeway > MaxLeeway {
		return fmt.Errorf("%w: %s (max %s)", ErrLeeway, o.Leeway, MaxLeeway)
	}
	return nil
}

func (o VerifyOptions) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")

	ErrWeakKey = errors.New("jwtx: signing key too short")
	ErrLeeway  = errors.New("jwtx: leeway out of range")
)

// verifier holds the checks shared by every algorithm. Algorithm specific
// types only supply the accepted method and the key lookup.
type verifier struct {
	opts    VerifyOptions
	method  string
	keyFunc jwt.Keyfunc
}

func (v *verifier) Verify(token string) (Claims, error) {
	return v.verify(token, false)
}

func (v *verifier) VerifyIgnoringExpiry(token string) (Claims, error) {
	return v.verify(token, true)
}

// verify checks structure, then signature, then issuer, then audience, then
// expiry, stopping at the first failure.
func (v *verifier) verify(token string, allowExpired bool) (Claims, error) {
	// Only the first two separators are structural; a stray '.' inside the
	// signature segment is signature damage.
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Claims{}, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)

	// Header and payload are decoded alone so that damage confined to the
	// signature segment reports as ErrInvalidSig.
	if _, _, err := parser.ParseUnverified(parts[0]+"."+parts[1]+".", &Claims{}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, v.keyFunc)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidSig, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrMalformed)
	}
	if !allowExpired {
		if err := claims.ValidateExpiryWithLeeway(v.opts.now(), v.opts.Leeway); err != nil {
			return Claims{}, err
		}
	}

	return claims, nil
}

// methodCheck rejects tokens whose header names another algorithm.
func methodCheck(t *jwt.Token, alg string) error {
	if t.Method == nil || t.Method.Alg() != alg {
		return ErrAlgMismatch
	}
	return nil
}
