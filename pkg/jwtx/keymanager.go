package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager manages JWT signing and verification keys for an instance.
// It provides a unified interface for signing and verification whichever
// algorithm is configured.
//
// In EdDSA mode it holds several ephemeral signing keys selected at random
// for signing. In HS256 mode it holds exactly one signer built from the
// configured shared secret.
type KeyManager struct {
	Verifier  Verifier
	KeySet    *KeySet
	algorithm string

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager for a specific use case.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "HS256", "EdDSA"
	Algorithm string

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// Audience is the list of audience values (aud) that will be validated.
	// Empty slice means no audience validation.
	Audience []string

	// Leeway is the clock skew tolerance applied to exp. At most MaxLeeway.
	Leeway time.Duration

	// Now overrides the validation clock.
	Now func() time.Time

	// HMACKey is the shared secret for HS256. Required in that mode and at
	// least MinHMACKeySize bytes long.
	HMACKey []byte

	// NumKeys specifies how many EdDSA signing keys to generate.
	// Defaults to 3 if not specified. Minimum is 1, maximum is 10.
	NumKeys int
}

// NewEphemeralKeyManager creates a new KeyManager. EdDSA keys are generated
// on the fly and only exist in memory, so all tokens become invalid when the
// service restarts. HS256 uses the supplied secret.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	vopts := VerifyOptions{
		Issuer:   opts.Issuer,
		Audience: opts.Audience,
		Leeway:   opts.Leeway,
		Now:      opts.Now,
	}

	switch opts.Algorithm {
	case AlgorithmHS256:
		return newHS256KeyManager(opts, vopts)
	case AlgorithmEdDSA:
		return newEdDSAKeyManager(opts, vopts)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: HS256, EdDSA)", opts.Algorithm)
	}
}

func newHS256KeyManager(opts KeyManagerOptions, vopts VerifyOptions) (*KeyManager, error) {
	signer, err := NewSignerHS256("", opts.HMACKey)
	if err != nil {
		return nil, err
	}

	verifier, err := NewVerifierHS256(opts.HMACKey, vopts)
	if err != nil {
		return nil, err
	}

	return &KeyManager{
		Verifier:  verifier,
		KeySet:    NewKeySet(),
		algorithm: AlgorithmHS256,
		signers:   []Signer{signer},
	}, nil
}

func newEdDSAKeyManager(opts KeyManagerOptions, vopts VerifyOptions) (*KeyManager, error) {
	// Determine number of keys to generate
	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3 // Default to 3 keys for 0 or negative values
	}
	if numKeys > 10 {
		numKeys = 10 // Cap at 10 keys maximum
	}

	// Create KeySet for JWKS publishing
	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)

	for i := range numKeys {
		keyID, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		pemBytes, err := cryptox.GenerateEd25519PEM()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate EdDSA key: %w", err)
		}

		signer, err := NewSignerEdDSA(keyID, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		signers = append(signers, signer)

		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
	}

	verifier, err := NewVerifierEdDSA(keyset, vopts)
	if err != nil {
		return nil, err
	}

	return &KeyManager{
		Verifier:  verifier,
		KeySet:    keyset,
		algorithm: AlgorithmEdDSA,
		signers:   signers,
	}, nil
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager can sign tokens.
func (km *KeyManager) IsReady() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers) > 0
}

// PublishesKeys reports whether the verification keys may be exposed as a JWKS.
func (km *KeyManager) PublishesKeys() bool {
	return km.algorithm == AlgorithmEdDSA
}

// GetSigner returns a randomly selected signer from the available signing keys.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if len(km.signers) == 0 {
		return nil
	}

	if len(km.signers) == 1 {
		return km.signers[0]
	}

	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// generateRandomKeyID creates a random key identifier using cryptographic entropy.
// Format: "gk-{random-token}" where random-token is a 128-bit secure token.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.NewSecret(cryptox.SecretSize128)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return fmt.Sprintf("gk-%s", token), nil
}
