package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// ErrSigningKey is returned when HS256 is configured without usable key
// material.
var ErrSigningKey = errors.New("signing key")

// InitAuthKeys creates the KeyManager for the configured algorithm.
//
//   - "HS256": one shared secret read from AUTH_SIGNING_KEY or
//     AUTH_SIGNING_KEY_FILE. Secrets shorter than 32 bytes are refused.
//   - "EdDSA": keys are generated on startup and held only in memory, so all
//     existing tokens become invalid when the service restarts. The public
//     halves are served as a JWKS.
//
// A clock skew above jwtx.MaxLeeway is refused in both modes.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	if cfg.ClockSkew < 0 || cfg.ClockSkew > jwtx.MaxLeeway {
		return nil, fmt.Errorf("%w: AUTH_CLOCK_SKEW %s (max %s)", jwtx.ErrLeeway, cfg.ClockSkew, jwtx.MaxLeeway)
	}

	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  []string{cfg.Audience},
		Leeway:    cfg.ClockSkew,
		NumKeys:   cfg.NumKeys,
	}

	if cfg.Algorithm == jwtx.AlgorithmHS256 {
		key, err := loadSigningKey(cfg)
		if err != nil {
			return nil, err
		}
		opts.HMACKey = key
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	logger.Info("signing keys ready",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
		"audience", cfg.Audience,
		"clock_skew", cfg.ClockSkew,
	)
	if keyManager.PublishesKeys() {
		logger.Warn("all existing tokens are now invalid due to key rotation on startup")
	}

	return keyManager, nil
}

// loadSigningKey returns the HS256 secret from the environment or a file.
// Trailing newlines in the file are ignored.
func loadSigningKey(cfg Config) ([]byte, error) {
	var key []byte
	switch {
	case cfg.SigningKey != "":
		key = []byte(cfg.SigningKey)
	case cfg.SigningKeyFile != "":
		raw, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrSigningKey, cfg.SigningKeyFile, err)
		}
		key = bytes.TrimRight(raw, "\r\n")
	default:
		return nil, fmt.Errorf("%w: HS256 needs AUTH_SIGNING_KEY or AUTH_SIGNING_KEY_FILE", ErrSigningKey)
	}

	if len(key) < jwtx.MinHMACKeySize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrSigningKey, len(key), jwtx.MinHMACKeySize)
	}
	return key, nil
}
