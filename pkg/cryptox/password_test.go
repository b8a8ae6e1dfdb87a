package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "gatekeeper-test-pepper")
	SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

func TestHashPasswordRoundTrip(t *testing.T) {
	passwords := map[string]string{
		"seeded admin": "admin123",
		"symbols":      "P@ssw0rd!#$%^&*()",
		"long":         strings.Repeat("a", 100),
		"empty":        "",
		"unicode":      "пароль🔒密码",
	}

	for name, password := range passwords {
		t.Run(name, func(t *testing.T) {
			hash, err := HashPassword(password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])

			require.NoError(t, VerifyPassword(password, hash))
		})
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NoError(t, VerifyPassword("same", a))
	require.NoError(t, VerifyPassword("same", b))
}

func TestVerifyPasswordMismatch(t *testing.T) {
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	for _, wrong := range []string{"Admin123", "admin123 ", "admin12", "", strings.Repeat("x", 10000)} {
		require.ErrorIs(t, VerifyPassword(wrong, hash), ErrPasswordMismatch, "password %q", wrong)
	}
}

func TestVerifyPasswordRejectsBadHashes(t *testing.T) {
	bad := []string{
		"",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456",
		"$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	}

	for _, h := range bad {
		err := VerifyPassword("whatever", h)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrPasswordMismatch, "hash %q", h)
	}
}

func TestDummyHash(t *testing.T) {
	h := DummyHash()
	require.True(t, strings.HasPrefix(h, "$argon2id$v=19$"))
	require.Equal(t, h, DummyHash(), "computed once")
	require.ErrorIs(t, VerifyPassword("admin123", h), ErrPasswordMismatch)
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)
	for range 10 {
		password, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, password, 12)
		require.False(t, seen[password])
		seen[password] = true

		for _, r := range password {
			ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			require.True(t, ok, "unexpected rune %q", r)
		}
	}
}
