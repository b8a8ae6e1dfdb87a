package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// pepperSize is the random length of a generated pepper, before encoding.
const pepperSize = 32

// ErrPepperEmpty is returned when the pepper file exists but holds nothing.
var ErrPepperEmpty = errors.New("cryptox: pepper file is empty")

// The pepper is appended to every password before hashing. It lives in a file
// outside the user database so that a leaked database alone cannot be
// brute-forced.
var (
	pepperMu   sync.RWMutex
	pepperPath = "pepper"
	pepper     string
)

// SetPepperPath points password hashing at a different pepper file. The next
// hash or verification loads it.
func SetPepperPath(path string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperPath = filepath.Clean(path)
	pepper = ""
}

// LoadPepper reads the pepper file, creating it with a fresh random pepper
// when it does not exist. Call it at start-up so a bad path fails there
// instead of on the first login.
func LoadPepper() error {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	p, err := readOrCreatePepper(pepperPath)
	if err != nil {
		return err
	}
	pepper = p
	return nil
}

func currentPepper() (string, error) {
	pepperMu.RLock()
	p := pepper
	pepperMu.RUnlock()
	if p != "" {
		return p, nil
	}
	if err := LoadPepper(); err != nil {
		return "", err
	}
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	return pepper, nil
}

func readOrCreatePepper(path string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		p := strings.TrimSpace(string(data))
		if p == "" {
			return "", fmt.Errorf("%w: %s", ErrPepperEmpty, path)
		}
		return p, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper directory: %w", err)
	}

	buf := make([]byte, pepperSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	p := base64.RawURLEncoding.EncodeToString(buf)

	// O_EXCL so two processes starting together agree on one pepper.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return readOrCreatePepper(path)
	}
	if err != nil {
		return "", fmt.Errorf("cryptox: create pepper: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(p); err != nil {
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}
	return p, nil
}
