package domain

import "time"

type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string   // argon2 encoded
	Roles        []string // Space-delimited in storage
	BirthDate    string   // YYYY-MM-DD, optional
	Department   string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries role exactly as written.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// OwnerID makes a user its own resource for ownership policies.
func (u User) OwnerID() string { return u.ID }
