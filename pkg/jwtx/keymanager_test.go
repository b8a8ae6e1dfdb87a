package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewEphemeralKeyManager_AllAlgorithms(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		key       []byte
		publishes bool
	}{
		{"HS256", jwtx.AlgorithmHS256, testHMACKey, false},
		{"EdDSA", jwtx.AlgorithmEdDSA, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
				Algorithm: tt.algorithm,
				Issuer:    "test-issuer",
				Audience:  []string{"test-audience"},
				HMACKey:   tt.key,
				NumKeys:   1,
			})

			require.NoError(t, err)
			require.NotNil(t, km)
			require.NotNil(t, km.GetSigner())
			require.NotNil(t, km.Verifier)
			require.NotNil(t, km.KeySet)
			require.Equal(t, tt.algorithm, km.Algorithm())
			require.True(t, km.IsReady())
			require.Equal(t, 1, km.NumSigners())
			require.Equal(t, tt.publishes, km.PublishesKeys())
			require.Equal(t, tt.publishes, km.KeySet.IsReady())
		})
	}
}

func TestKeyManager_SignAndVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		key       []byte
	}{
		{"HS256", jwtx.AlgorithmHS256, testHMACKey},
		{"EdDSA", jwtx.AlgorithmEdDSA, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
				Algorithm: tt.algorithm,
				Issuer:    "test-issuer",
				Audience:  []string{"test-audience"},
				HMACKey:   tt.key,
				NumKeys:   1,
			})
			require.NoError(t, err)

			now := time.Now().UTC()
			claims := jwtx.NewClaims(testClaimSet(), 5*time.Minute, "test-issuer", []string{"test-audience"}, now)

			token, err := km.GetSigner().Sign(claims)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			parsedClaims, err := km.Verifier.Verify(token)
			require.NoError(t, err)

			require.Equal(t, claims.Subject, parsedClaims.Subject)
			require.Equal(t, claims.Issuer, parsedClaims.Issuer)
			require.ElementsMatch(t, claims.Audience, parsedClaims.Audience)
			require.Equal(t, claims.Claims, parsedClaims.Claims)
		})
	}
}

func TestNewEphemeralKeyManager_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		opts        jwtx.KeyManagerOptions
		expectedErr string
	}{
		{
			name: "missing Issuer",
			opts: jwtx.KeyManagerOptions{
				Algorithm: jwtx.AlgorithmEdDSA,
			},
			expectedErr: "Issuer is required",
		},
		{
			name: "unsupported algorithm",
			opts: jwtx.KeyManagerOptions{
				Algorithm: "RS256",
				Issuer:    "test-issuer",
			},
			expectedErr: "unsupported algorithm",
		},
		{
			name: "HS256 without key",
			opts: jwtx.KeyManagerOptions{
				Algorithm: jwtx.AlgorithmHS256,
				Issuer:    "test-issuer",
			},
			expectedErr: "signing key too short",
		},
		{
			name: "leeway above maximum",
			opts: jwtx.KeyManagerOptions{
				Algorithm: jwtx.AlgorithmEdDSA,
				Issuer:    "test-issuer",
				Leeway:    10 * time.Minute,
				NumKeys:   1,
			},
			expectedErr: "leeway out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(tt.opts)
			require.Error(t, err)
			require.Nil(t, km)
			require.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestKeyManager_MultiKeyMode(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		// NumKeys not specified, should default to 3
	})
	require.NoError(t, err)
	require.Equal(t, 3, km.NumSigners())

	jwks := km.KeySet.PublicJWKS()
	require.Len(t, jwks.Keys, 3)

	// Verify all keys have different kid values
	kids := make(map[string]bool)
	for _, jwk := range jwks.Keys {
		require.NotEmpty(t, jwk.Kid)
		require.False(t, kids[jwk.Kid], "duplicate kid found: %s", jwk.Kid)
		kids[jwk.Kid] = true
	}

	now := time.Now().UTC()
	for range 10 {
		claims := jwtx.NewClaims(testClaimSet(), 5*time.Minute, "test-issuer", []string{"test-audience"}, now)

		token, err := km.GetSigner().Sign(claims)
		require.NoError(t, err)

		parsedClaims, err := km.Verifier.Verify(token)
		require.NoError(t, err)
		require.Equal(t, claims.Subject, parsedClaims.Subject)
	}
}

func TestKeyManager_CustomNumKeys(t *testing.T) {
	tests := []struct {
		name     string
		numKeys  int
		expected int
	}{
		{"explicit 2 keys", 2, 2},
		{"explicit 1 key", 1, 1},
		{"max capped at 10", 15, 10},
		{"zero defaults to 3", 0, 3},
		{"negative defaults to 3", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
				Algorithm: jwtx.AlgorithmEdDSA,
				Issuer:    "test-issuer",
				NumKeys:   tt.numKeys,
			})
			require.NoError(t, err)
			require.Equal(t, tt.expected, km.NumSigners())
			require.Len(t, km.KeySet.PublicJWKS().Keys, tt.expected)
		})
	}
}
