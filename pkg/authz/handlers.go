package authz

import (
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
)

// Input is everything a handler may look at for one requirement.
type Input struct {
	// Claims is the verified principal.
	Claims claimset.ClaimSet

	// Resource is the optional object being accessed.
	Resource any

	// Now is the evaluation instant.
	Now time.Time
}

// Handler decides a single requirement. Handlers must be pure: no I/O and
// no state kept between calls. A handler handed a requirement of the wrong
// concrete type returns false.
type Handler interface {
	Handle(in Input, req Requirement) bool
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(in Input, req Requirement) bool

func (f HandlerFunc) Handle(in Input, req Requirement) bool { return f(in, req) }

// DefaultHandlers returns the built-in handler table keyed by kind.
func DefaultHandlers() map[string]Handler {
	return map[string]Handler{
		KindRole:       RoleHandler{},
		KindMinimumAge: MinimumAgeHandler{},
		KindDepartment: DepartmentHandler{},
		KindTimeWindow: TimeWindowHandler{},
		KindOwner:      OwnerHandler{},
		KindClaim:      ClaimHandler{},
	}
}

// RoleHandler decides RoleRequirement.
type RoleHandler struct{}

func (RoleHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(RoleRequirement)
	if !ok {
		return false
	}
	return slices.ContainsFunc(in.Claims.Roles(), func(role string) bool {
		return slices.Contains(r.Roles, role)
	})
}

// MinimumAgeHandler decides MinimumAgeRequirement from the birthdate claim.
type MinimumAgeHandler struct{}

func (MinimumAgeHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(MinimumAgeRequirement)
	if !ok {
		return false
	}

	raw, ok := in.Claims.Get(claimset.BirthDate)
	if !ok {
		return false
	}

	birth, ok := parseBirthDate(raw)
	if !ok {
		return false
	}

	return AgeOn(birth, in.Now) >= r.Age
}

// parseBirthDate accepts an ISO-8601 calendar date, or an RFC 3339
// timestamp whose date part is used as written.
func parseBirthDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// AgeOn returns the whole years between birth and the UTC calendar day of now.
func AgeOn(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.UTC().Date()

	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// DepartmentHandler decides DepartmentRequirement.
type DepartmentHandler struct{}

func (DepartmentHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(DepartmentRequirement)
	if !ok {
		return false
	}
	for _, want := range r.Departments {
		if in.Claims.HasFold(claimset.Department, want) {
			return true
		}
	}
	return false
}

// TimeWindowHandler decides TimeWindowRequirement against the wall clock in
// Location, or the server's local zone when Location is nil.
type TimeWindowHandler struct {
	Location *time.Location
}

func (h TimeWindowHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(TimeWindowRequirement)
	if !ok {
		return false
	}

	loc := h.Location
	if loc == nil {
		loc = time.Local
	}

	local := in.Now.In(loc)
	now := local.Hour()*3600 + local.Minute()*60 + local.Second()
	start, end := r.Start.Seconds(), r.End.Seconds()

	if start <= end {
		return now >= start && now <= end
	}
	return now >= start || now <= end
}

// OwnerHandler decides OwnerRequirement.
type OwnerHandler struct{}

func (OwnerHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(OwnerRequirement)
	if !ok {
		return false
	}

	owned, ok := in.Resource.(Owned)
	if !ok {
		return false
	}

	owner := owned.OwnerID()
	if owner == "" {
		return false
	}
	return in.Claims.Has(r.claimType(), owner)
}

// ClaimHandler decides ClaimRequirement.
type ClaimHandler struct{}

func (ClaimHandler) Handle(in Input, req Requirement) bool {
	r, ok := req.(ClaimRequirement)
	if !ok || r.Type == "" {
		return false
	}

	values := in.Claims.Values(r.Type)
	if len(values) == 0 {
		return false
	}
	if len(r.Values) == 0 {
		return true
	}
	return slices.ContainsFunc(values, func(v string) bool {
		return slices.Contains(r.Values, v)
	})
}
