package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByID, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByUsername, username))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, createUser,
		u.ID,
		u.Username,
		u.Name,
		u.Email,
		u.PasswordHash,
		strings.Join(u.Roles, " "),
		u.BirthDate,
		u.Department,
		u.Disabled,
		now,
		now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	return r.exec(ctx, updateUserDisabled, disabled, toMillis(time.Now()), userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, countUsers).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// exec runs a single row mutation and reports ErrNotFound when it matched
// nothing.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
