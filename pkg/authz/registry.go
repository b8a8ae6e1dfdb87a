package authz

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	ErrPolicyNotFound = errors.New("authz: policy not found")
	ErrPolicyExists   = errors.New("authz: policy already registered")
	ErrInvalidPolicy  = errors.New("authz: invalid policy")
	ErrRegistryFrozen = errors.New("authz: registry is frozen")
)

// Policy is a named, ordered list of requirements. It is satisfied only when
// every requirement succeeds.
type Policy struct {
	Name         string
	Requirements []Requirement
}

// Registry maps policy names to policies. It is filled at startup and frozen
// when the engine is built; after that reads take no locks.
type Registry struct {
	mu       sync.RWMutex
	frozen   atomic.Bool
	policies map[string]Policy
	order    []string
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds a policy. Names must be non-empty and unique, and a policy
// needs at least one non-nil requirement.
func (r *Registry) Register(name string, requirements ...Requirement) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	if len(requirements) == 0 {
		return fmt.Errorf("%w: %q has no requirements", ErrInvalidPolicy, name)
	}
	for i, req := range requirements {
		if req == nil {
			return fmt.Errorf("%w: %q requirement %d is nil", ErrInvalidPolicy, name, i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	if _, ok := r.policies[name]; ok {
		return fmt.Errorf("%w: %q", ErrPolicyExists, name)
	}

	r.policies[name] = Policy{Name: name, Requirements: slices.Clone(requirements)}
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for built-in tables; it panics on error.
func (r *Registry) MustRegister(name string, requirements ...Requirement) {
	if err := r.Register(name, requirements...); err != nil {
		panic(err)
	}
}

// Resolve returns the named policy.
func (r *Registry) Resolve(name string) (Policy, error) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	p, ok := r.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	}
	return Policy{Name: p.Name, Requirements: slices.Clone(p.Requirements)}, nil
}

// Names returns policy names in registration order.
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return slices.Clone(r.order)
}

// Freeze rejects further registrations. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }
