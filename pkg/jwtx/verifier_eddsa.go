package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// NewVerifierEdDSA creates a verifier using a KeySet of Ed25519 public keys.
func NewVerifierEdDSA(keys *KeySet, opts VerifyOptions) (Verifier, error) {
	if keys == nil {
		return nil, errors.New("jwtx: nil KeySet")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	alg := jwt.SigningMethodEdDSA.Alg()

	return &verifier{
		opts:   opts,
		method: alg,
		keyFunc: func(t *jwt.Token) (any, error) {
			if err := methodCheck(t, alg); err != nil {
				return nil, err
			}

			// Need the kid to know which key to use
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
			}

			// Try to find this key in our set
			pub, err := keys.Get(kid)
			if err != nil {
				return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
			}

			// Make sure it's actually an Ed25519 key
			ed25519Pub, ok := pub.(ed25519.PublicKey)
			if !ok {
				return nil, errors.New("jwtx: invalid Ed25519 key type")
			}
			return ed25519Pub, nil
		},
	}, nil
}
