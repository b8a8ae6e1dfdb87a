package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const pemPrivateKey = "PRIVATE KEY"

// ErrNotEd25519 is returned by ParseEd25519PEM for PEM that does not hold a
// PKCS8 Ed25519 private key.
var ErrNotEd25519 = errors.New("cryptox: not an Ed25519 private key")

// GenerateEd25519PEM creates a token signing key and returns it as a PKCS8
// "PRIVATE KEY" PEM block, the form ParseEd25519PEM and key files accept.
func GenerateEd25519PEM() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate Ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

// ParseEd25519PEM decodes the first PEM block of pemKey into an Ed25519
// private key.
func ParseEd25519PEM(pemKey []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrNotEd25519)
	}
	if block.Type != pemPrivateKey {
		return nil, fmt.Errorf("%w: PEM type %q, want PKCS8 %q", ErrNotEd25519, block.Type, pemPrivateKey)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEd25519, err)
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS8 holds %T", ErrNotEd25519, priv)
	}
	return key, nil
}
