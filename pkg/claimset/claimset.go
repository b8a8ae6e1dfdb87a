// Package claimset holds the verified identity attributes of a principal.
//
// A ClaimSet is produced by token validation (or at issue time) and consumed
// by the authorization engine. It is immutable: constructors copy their input
// and accessors return copies, so a ClaimSet can be shared freely between
// goroutines.
package claimset

import (
	"maps"
	"slices"
	"strings"
)

// Standard claim types.
const (
	Subject    = "sub"
	Name       = "name"
	Email      = "email"
	Role       = "role"
	BirthDate  = "birthdate"
	Department = "department"
)

// ClaimSet is an immutable multimap of claim type to values plus the
// subject identifier of the principal.
type ClaimSet struct {
	subject string
	claims  map[string][]string
}

// New builds a ClaimSet for subject. Empty claim types and empty value lists
// are dropped. A "sub" entry in claims is ignored; the subject argument wins.
func New(subject string, claims map[string][]string) ClaimSet {
	cs := ClaimSet{
		subject: subject,
		claims:  make(map[string][]string, len(claims)),
	}
	for typ, vals := range claims {
		if typ == "" || typ == Subject || len(vals) == 0 {
			continue
		}
		cs.claims[typ] = slices.Clone(vals)
	}
	return cs
}

// Builder accumulates claims before freezing them into a ClaimSet.
type Builder struct {
	subject string
	claims  map[string][]string
}

// NewBuilder starts a ClaimSet for subject.
func NewBuilder(subject string) *Builder {
	return &Builder{subject: subject, claims: make(map[string][]string)}
}

// Add appends values for typ. Empty strings are skipped.
func (b *Builder) Add(typ string, values ...string) *Builder {
	for _, v := range values {
		if v == "" {
			continue
		}
		b.claims[typ] = append(b.claims[typ], v)
	}
	return b
}

// Build returns the immutable ClaimSet.
func (b *Builder) Build() ClaimSet {
	return New(b.subject, b.claims)
}

// Subject returns the principal identifier.
func (c ClaimSet) Subject() string { return c.subject }

// IsZero reports whether the ClaimSet carries no subject.
func (c ClaimSet) IsZero() bool { return c.subject == "" }

// Get returns the first value for typ.
func (c ClaimSet) Get(typ string) (string, bool) {
	if typ == Subject {
		return c.subject, c.subject != ""
	}
	vals := c.claims[typ]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns a copy of every value for typ, in insertion order.
func (c ClaimSet) Values(typ string) []string {
	if typ == Subject {
		if c.subject == "" {
			return nil
		}
		return []string{c.subject}
	}
	return slices.Clone(c.claims[typ])
}

// Has reports whether the ClaimSet contains value for typ (exact match).
func (c ClaimSet) Has(typ, value string) bool {
	if typ == Subject {
		return c.subject == value
	}
	return slices.Contains(c.claims[typ], value)
}

// HasFold is Has with case-insensitive value comparison.
func (c ClaimSet) HasFold(typ, value string) bool {
	return slices.ContainsFunc(c.claims[typ], func(v string) bool {
		return strings.EqualFold(v, value)
	})
}

// Roles is shorthand for Values(Role).
func (c ClaimSet) Roles() []string { return c.Values(Role) }

// Types returns the claim types present, sorted.
func (c ClaimSet) Types() []string {
	return slices.Sorted(maps.Keys(c.claims))
}

// All returns a deep copy of the claim multimap, excluding the subject.
func (c ClaimSet) All() map[string][]string {
	out := make(map[string][]string, len(c.claims))
	for typ, vals := range c.claims {
		out[typ] = slices.Clone(vals)
	}
	return out
}

// Equal reports whether both sets carry the same subject and the same
// values per type in the same order.
func (c ClaimSet) Equal(o ClaimSet) bool {
	if c.subject != o.subject || len(c.claims) != len(o.claims) {
		return false
	}
	for typ, vals := range c.claims {
		if !slices.Equal(vals, o.claims[typ]) {
			return false
		}
	}
	return true
}
