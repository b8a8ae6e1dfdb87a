package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/goccy/go-yaml"
)

var ErrSeedInvalid = errors.New("invalid seed data")

// DefaultSeed is the demo user table used when no seed file is configured.
func DefaultSeed() domain.SeedData {
	return domain.SeedData{Users: []domain.SeedUser{
		{
			Username:   "admin",
			Password:   "admin123",
			Name:       "Administrator",
			Email:      "admin@example.com",
			Roles:      []string{"Admin"},
			BirthDate:  "1985-04-12",
			Department: "IT",
		},
		{
			Username:   "editor",
			Password:   "editor123",
			Name:       "Eddie Editor",
			Email:      "editor@example.com",
			Roles:      []string{"Editor"},
			BirthDate:  "1995-08-30",
			Department: "Marketing",
		},
		{
			Username:   "user",
			Password:   "user123",
			Name:       "Una User",
			Email:      "user@example.com",
			Roles:      []string{"User"},
			BirthDate:  "2008-01-01",
			Department: "Sales",
		},
	}}
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (domain.SeedData, error) {
	var data domain.SeedData
	if err := yaml.NewDecoder(r, yaml.DisallowUnknownField()).Decode(&data); err != nil {
		return domain.SeedData{}, fmt.Errorf("parse seed: %w", err)
	}
	return data, nil
}

// LoadSeedFile reads and decodes the seed file at path.
func LoadSeedFile(path string) (domain.SeedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.SeedData{}, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// SeedService creates the initial users on an empty store.
type SeedService struct {
	Store store.Store
}

// Seed creates every user in data inside one transaction when the store has
// no users yet; otherwise it does nothing. Users without a password get a
// generated one, returned keyed by username so the operator can hand it out.
func (s *SeedService) Seed(ctx context.Context, data domain.SeedData) (map[string]string, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return nil, err
	}
	if !empty {
		l.Debug("user store already populated, skipping seed")
		return nil, nil
	}

	users := make([]domain.User, 0, len(data.Users))
	generated := map[string]string{}
	for i, su := range data.Users {
		if su.Username == "" {
			return nil, fmt.Errorf("%w: user %d has no username", ErrSeedInvalid, i)
		}

		password := su.Password
		if password == "" {
			if password, err = cryptox.GeneratePassword(); err != nil {
				return nil, err
			}
			generated[su.Username] = password
		}

		hash, err := cryptox.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", su.Username, err)
		}

		users = append(users, domain.User{
			ID:           idx.New().String(),
			Username:     su.Username,
			Name:         su.Name,
			Email:        su.Email,
			PasswordHash: hash,
			Roles:        su.Roles,
			BirthDate:    su.BirthDate,
			Department:   su.Department,
		})
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, u := range users {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("seeded users", slog.Int("count", len(users)), slog.Int("generated_passwords", len(generated)))
	return generated, nil
}
