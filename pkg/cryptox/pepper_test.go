package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// usePepperFile switches hashing to path for the rest of the test.
func usePepperFile(t *testing.T, path string) {
	t.Helper()
	pepperMu.RLock()
	prev := pepperPath
	pepperMu.RUnlock()

	SetPepperPath(path)
	t.Cleanup(func() { SetPepperPath(prev) })
}

func TestLoadPepperCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "nested", "pepper")
	usePepperFile(t, path)

	require.NoError(t, LoadPepper())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, first, 43)

	// Loading again keeps the existing pepper.
	require.NoError(t, LoadPepper())
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadPepperTrimsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("  hand-written-pepper\n"), 0o600))
	usePepperFile(t, path)

	require.NoError(t, LoadPepper())
	p, err := currentPepper()
	require.NoError(t, err)
	require.Equal(t, "hand-written-pepper", p)
}

func TestLoadPepperRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	usePepperFile(t, path)

	require.ErrorIs(t, LoadPepper(), ErrPepperEmpty)

	_, err := HashPassword("admin123")
	require.ErrorIs(t, err, ErrPepperEmpty)
}

func TestPepperBindsHashes(t *testing.T) {
	dir := t.TempDir()

	usePepperFile(t, filepath.Join(dir, "a"))
	hash, err := HashPassword("admin123")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword("admin123", hash))

	SetPepperPath(filepath.Join(dir, "b"))
	require.ErrorIs(t, VerifyPassword("admin123", hash), ErrPasswordMismatch)

	SetPepperPath(filepath.Join(dir, "a"))
	require.NoError(t, VerifyPassword("admin123", hash))
}
