package authz

import (
	"fmt"
	"strings"
)

// Requirement kinds understood by the built-in handlers.
const (
	KindRole       = "role"
	KindMinimumAge = "minimum_age"
	KindDepartment = "department"
	KindTimeWindow = "time_window"
	KindOwner      = "owner"
	KindClaim      = "claim"
)

// Requirement is a pure data description of one condition a principal must
// meet. Requirements carry no behaviour; the engine dispatches them to the
// Handler registered for their Kind.
type Requirement interface {
	Kind() string
	String() string
}

// RoleRequirement succeeds when any "role" claim is one of Roles. Comparison
// is case-sensitive.
type RoleRequirement struct {
	Roles []string `mapstructure:"roles"`
}

// Role builds a RoleRequirement.
func Role(roles ...string) RoleRequirement { return RoleRequirement{Roles: roles} }

func (RoleRequirement) Kind() string { return KindRole }
func (r RoleRequirement) String() string {
	return "role in [" + strings.Join(r.Roles, ", ") + "]"
}

// MinimumAgeRequirement succeeds when the "birthdate" claim puts the
// principal at Age whole years or older on the evaluation day.
type MinimumAgeRequirement struct {
	Age int `mapstructure:"age"`
}

// MinimumAge builds a MinimumAgeRequirement.
func MinimumAge(age int) MinimumAgeRequirement { return MinimumAgeRequirement{Age: age} }

func (MinimumAgeRequirement) Kind() string { return KindMinimumAge }
func (r MinimumAgeRequirement) String() string {
	return fmt.Sprintf("age >= %d", r.Age)
}

// DepartmentRequirement succeeds when any "department" claim matches one of
// Departments, ignoring case.
type DepartmentRequirement struct {
	Departments []string `mapstructure:"departments"`
}

// Department builds a DepartmentRequirement.
func Department(departments ...string) DepartmentRequirement {
	return DepartmentRequirement{Departments: departments}
}

func (DepartmentRequirement) Kind() string { return KindDepartment }
func (r DepartmentRequirement) String() string {
	return "department in [" + strings.Join(r.Departments, ", ") + "]"
}

// TimeWindowRequirement succeeds when the server's local time of day lies
// within [Start, End]. A window whose start is after its end spans midnight.
type TimeWindowRequirement struct {
	Start TimeOfDay
	End   TimeOfDay
}

// TimeWindow parses "HH:MM" or "HH:MM:SS" bounds into a requirement.
func TimeWindow(start, end string) (TimeWindowRequirement, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeWindowRequirement{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeWindowRequirement{}, err
	}
	return TimeWindowRequirement{Start: s, End: e}, nil
}

// MustTimeWindow is TimeWindow for constant bounds.
func MustTimeWindow(start, end string) TimeWindowRequirement {
	r, err := TimeWindow(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func (TimeWindowRequirement) Kind() string { return KindTimeWindow }
func (r TimeWindowRequirement) String() string {
	return "time between " + r.Start.String() + " and " + r.End.String()
}

// OwnerRequirement succeeds when the evaluated resource implements Owned and
// its owner equals the principal's Claim value. Claim defaults to "sub".
type OwnerRequirement struct {
	Claim string `mapstructure:"claim"`
}

// Owner builds an OwnerRequirement matched on the subject.
func Owner() OwnerRequirement { return OwnerRequirement{} }

func (OwnerRequirement) Kind() string { return KindOwner }
func (r OwnerRequirement) String() string {
	return "resource owner matches " + r.claimType()
}

func (r OwnerRequirement) claimType() string {
	if r.Claim == "" {
		return "sub"
	}
	return r.Claim
}

// Owned is implemented by resources that can be checked with OwnerRequirement.
type Owned interface {
	OwnerID() string
}

// ClaimRequirement succeeds when the principal carries claim Type and, if
// Values is non-empty, one of its values equals one of Values.
type ClaimRequirement struct {
	Type   string   `mapstructure:"type"`
	Values []string `mapstructure:"values"`
}

// Claim builds a ClaimRequirement.
func Claim(typ string, values ...string) ClaimRequirement {
	return ClaimRequirement{Type: typ, Values: values}
}

func (ClaimRequirement) Kind() string { return KindClaim }
func (r ClaimRequirement) String() string {
	if len(r.Values) == 0 {
		return "has claim " + r.Type
	}
	return r.Type + " in [" + strings.Join(r.Values, ", ") + "]"
}

// TimeOfDay is a wall-clock time with seconds resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	var n int
	var err error

	switch strings.Count(s, ":") {
	case 1:
		n, err = fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute)
		if err == nil && n != 2 {
			err = fmt.Errorf("expected HH:MM")
		}
	case 2:
		n, err = fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second)
		if err == nil && n != 3 {
			err = fmt.Errorf("expected HH:MM:SS")
		}
	default:
		err = fmt.Errorf("expected HH:MM or HH:MM:SS")
	}
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("authz: invalid time of day %q: %w", s, err)
	}

	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("authz: time of day %q out of range", s)
	}
	return t, nil
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}
