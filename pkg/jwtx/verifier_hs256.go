package jwtx

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// NewVerifierHS256 creates a verifier for tokens signed with the shared key.
func NewVerifierHS256(key []byte, opts VerifyOptions) (Verifier, error) {
	if len(key) < MinHMACKeySize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrWeakKey, len(key), MinHMACKeySize)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	secret := slices.Clone(key)
	alg := jwt.SigningMethodHS256.Alg()

	return &verifier{
		opts:   opts,
		method: alg,
		keyFunc: func(t *jwt.Token) (any, error) {
			if err := methodCheck(t, alg); err != nil {
				return nil, err
			}
			return secret, nil
		},
	}, nil
}
