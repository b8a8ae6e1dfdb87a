package jwtx_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testHMACKey = []byte("0123456789abcdef0123456789abcdef")

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newHS256Pair(t *testing.T, clock *fixedClock) (jwtx.Signer, jwtx.Verifier) {
	t.Helper()

	signer, err := jwtx.NewSignerHS256("", testHMACKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	require.Equal(t, "HS256", signer.Alg())

	verifier, err := jwtx.NewVerifierHS256(testHMACKey, jwtx.VerifyOptions{
		Issuer:   exampleIssuer,
		Audience: []string{exampleAudience},
		Now:      clock.Now,
	})
	require.NoError(t, err)

	return signer, verifier
}

func testClaimSet() claimset.ClaimSet {
	return claimset.NewBuilder("user-42").
		Add(claimset.Name, "Jane Admin").
		Add(claimset.Email, "jane@example.com").
		Add(claimset.Role, "Admin", "User").
		Add(claimset.BirthDate, "1990-03-14").
		Build()
}

func TestHS256RoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	signer, verifier := newHS256Pair(t, clock)

	set := testClaimSet()
	claims := jwtx.NewClaims(set, 15*time.Minute, exampleIssuer, []string{exampleAudience}, clock.now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.ID, parsed.ID)
	require.True(t, parsed.ClaimSet().Equal(set))
	require.Equal(t, []string{"Admin", "User"}, parsed.ClaimSet().Roles())
}

func TestHS256ExpiryBoundary(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: issued}
	signer, verifier := newHS256Pair(t, clock)

	claims := jwtx.NewClaims(testClaimSet(), time.Minute, exampleIssuer, []string{exampleAudience}, issued)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	exp := claims.ExpiresAt.Time

	clock.now = exp.Add(-time.Second)
	_, err = verifier.Verify(token)
	require.NoError(t, err)

	clock.now = exp
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	clock.now = exp.Add(time.Second)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	parsed, err := verifier.VerifyIgnoringExpiry(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", parsed.Subject)
}

func TestHS256Leeway(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: issued}

	signer, err := jwtx.NewSignerHS256("", testHMACKey)
	require.NoError(t, err)

	verifier, err := jwtx.NewVerifierHS256(testHMACKey, jwtx.VerifyOptions{
		Issuer: exampleIssuer,
		Leeway: 30 * time.Second,
		Now:    clock.Now,
	})
	require.NoError(t, err)

	claims := jwtx.NewClaims(testClaimSet(), time.Minute, exampleIssuer, nil, issued)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	clock.now = claims.ExpiresAt.Add(29 * time.Second)
	_, err = verifier.Verify(token)
	require.NoError(t, err)

	clock.now = claims.ExpiresAt.Add(30 * time.Second)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	_, err = jwtx.NewVerifierHS256(testHMACKey, jwtx.VerifyOptions{Leeway: jwtx.MaxLeeway + time.Second})
	require.ErrorIs(t, err, jwtx.ErrLeeway)
}

func TestHS256TamperedSignature(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	signer, verifier := newHS256Pair(t, clock)

	token, err := signer.Sign(jwtx.NewClaims(testClaimSet(), time.Hour, exampleIssuer, []string{exampleAudience}, clock.now))
	require.NoError(t, err)

	sigStart := strings.LastIndex(token, ".") + 1
	for i := sigStart; i < len(token); i++ {
		for bit := range 8 {
			b := []byte(token)
			b[i] ^= 1 << bit
			tampered := string(b)

			_, err := verifier.Verify(tampered)
			require.ErrorIs(t, err, jwtx.ErrInvalidSig, "index %d bit %d (%q -> %q)", i, bit, token[i], b[i])
		}
	}
}

func TestHS256SeparatorInSignature(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	signer, verifier := newHS256Pair(t, clock)

	token, err := signer.Sign(jwtx.NewClaims(testClaimSet(), time.Hour, exampleIssuer, []string{exampleAudience}, clock.now))
	require.NoError(t, err)

	sigStart := strings.LastIndex(token, ".") + 1
	for _, i := range []int{sigStart, sigStart + 5, len(token) - 1} {
		tampered := token[:i] + "." + token[i+1:]
		_, err := verifier.Verify(tampered)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig, "index %d", i)
	}
}

func TestHS256TamperedPayload(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	signer, verifier := newHS256Pair(t, clock)

	token, err := signer.Sign(jwtx.NewClaims(testClaimSet(), time.Hour, exampleIssuer, []string{exampleAudience}, clock.now))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	forged := strings.Replace(string(payload), `"User"`, `"Root"`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = verifier.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestHS256IssuerAndAudience(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	signer, verifier := newHS256Pair(t, clock)

	tests := []struct {
		name     string
		issuer   string
		audience []string
		wantErr  error
	}{
		{"wrong issuer", "someone-else", []string{exampleAudience}, jwtx.ErrIssuer},
		{"issuer case differs", strings.ToUpper(exampleIssuer), []string{exampleAudience}, jwtx.ErrIssuer},
		{"wrong audience", exampleIssuer, []string{"other-api"}, jwtx.ErrAudience},
		{"no audience", exampleIssuer, nil, jwtx.ErrAudience},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := signer.Sign(jwtx.NewClaims(testClaimSet(), time.Hour, tt.issuer, tt.audience, clock.now))
			require.NoError(t, err)

			_, err = verifier.Verify(token)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHS256Malformed(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	_, verifier := newHS256Pair(t, clock)

	inputs := []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c",
		"..",
		"a.b.c.d",
		"eyJhbGciOiJIUzI1NiJ9.!!!.sig",
		base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`)) + "." +
			base64.RawURLEncoding.EncodeToString([]byte(`not json`)) + ".sig",
	}

	for _, in := range inputs {
		require.NotPanics(t, func() {
			_, err := verifier.Verify(in)
			require.ErrorIs(t, err, jwtx.ErrMalformed, "input %q", in)
		})
	}
}

func TestHS256RejectsUnsignedAndForeignAlgorithms(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	_, verifier := newHS256Pair(t, clock)

	payload := base64.RawURLEncoding.EncodeToString([]byte(
		`{"iss":"` + exampleIssuer + `","aud":["` + exampleAudience + `"],"sub":"x","exp":1893456000}`,
	))

	none := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + payload + "."
	_, err := verifier.Verify(none)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    exampleIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	foreign, err := km.GetSigner().Sign(jwtx.NewClaims(testClaimSet(), time.Hour, exampleIssuer, []string{exampleAudience}, clock.now))
	require.NoError(t, err)

	_, err = verifier.Verify(foreign)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestHS256WeakKey(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewSignerHS256("", []byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakKey)

	_, err = jwtx.NewVerifierHS256(testHMACKey[:31], jwtx.VerifyOptions{})
	require.ErrorIs(t, err, jwtx.ErrWeakKey)
}
