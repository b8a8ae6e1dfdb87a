package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	// ErrForbidden is matched by every DeniedError.
	ErrForbidden = errors.New("authz: forbidden")

	// ErrConfiguration reports a policy table the engine cannot evaluate.
	ErrConfiguration = errors.New("authz: invalid configuration")
)

// Failure records one requirement that did not succeed.
type Failure struct {
	Kind        string
	Requirement string
	Reason      string
}

// Decision is the outcome of evaluating a policy.
type Decision struct {
	Allowed  bool
	Policy   string
	Failures []Failure
}

// Err returns nil when allowed and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Policy: d.Policy, Failures: slices.Clone(d.Failures)}
}

// DeniedError carries the failed requirements of a denied decision. The
// details are for server-side logs; callers facing clients should only
// report that access was forbidden.
type DeniedError struct {
	Policy   string
	Failures []Failure
}

func (e *DeniedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("authz: access denied by policy %q", e.Policy)
	}
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, f.Requirement+": "+f.Reason)
	}
	return fmt.Sprintf("authz: access denied by policy %q: %s", e.Policy, strings.Join(reasons, "; "))
}

// Is reports whether this error matches the target.
func (e *DeniedError) Is(target error) bool {
	return target == ErrForbidden
}

// Engine evaluates policies against claim sets. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	registry *Registry
	handlers map[string]Handler
	now      func() time.Time
	meter    metric.Meter
	metrics  *decisionMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithHandler registers h for kind, replacing any built-in handler.
func WithHandler(kind string, h Handler) Option {
	return func(e *Engine) { e.handlers[kind] = h }
}

// WithoutDefaultHandlers starts from an empty handler table.
func WithoutDefaultHandlers() Option {
	return func(e *Engine) { clear(e.handlers) }
}

// WithClock overrides the evaluation clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMeter records decision counters on meter.
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		if meter != nil {
			e.meter = meter
		}
	}
}

// NewEngine builds an engine over registry and freezes it. Every kind used by
// a registered policy must have a handler, otherwise ErrConfiguration is
// returned and the service should refuse to start.
func NewEngine(registry *Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrConfiguration)
	}

	e := &Engine{
		registry: registry,
		handlers: DefaultHandlers(),
		now:      time.Now,
		meter:    noop.NewMeterProvider().Meter("authz"),
	}
	for _, opt := range opts {
		opt(e)
	}

	registry.Freeze()

	var missing []string
	for _, name := range registry.Names() {
		p, _ := registry.Resolve(name)
		for _, req := range p.Requirements {
			if _, ok := e.handlers[req.Kind()]; !ok {
				missing = append(missing, fmt.Sprintf("%s uses %q", name, req.Kind()))
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no handler registered: %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	m, err := newDecisionMetrics(e.meter)
	if err != nil {
		return nil, fmt.Errorf("authz: metrics: %w", err)
	}
	e.metrics = m

	return e, nil
}

// Kinds returns the requirement kinds the engine can decide, sorted.
func (e *Engine) Kinds() []string {
	return slices.Sorted(maps.Keys(e.handlers))
}

// Registry returns the frozen registry backing the engine.
func (e *Engine) Registry() *Registry { return e.registry }

// EvalOption adjusts a single evaluation.
type EvalOption func(*evalConfig)

type evalConfig struct {
	resource    any
	now         time.Time
	diagnostics bool
}

// WithResource supplies the resource for ownership checks.
func WithResource(resource any) EvalOption {
	return func(c *evalConfig) { c.resource = resource }
}

// WithTime evaluates as of t instead of the engine clock.
func WithTime(t time.Time) EvalOption {
	return func(c *evalConfig) { c.now = t }
}

// WithDiagnostics runs every requirement instead of stopping at the first
// failure, so the decision lists all failures.
func WithDiagnostics() EvalOption {
	return func(c *evalConfig) { c.diagnostics = true }
}

// Authorize resolves policyName and evaluates it. Unknown policies deny.
func (e *Engine) Authorize(ctx context.Context, claims claimset.ClaimSet, policyName string, opts ...EvalOption) Decision {
	p, err := e.registry.Resolve(policyName)
	if err != nil {
		d := Decision{
			Policy:   policyName,
			Failures: []Failure{{Reason: "policy not registered"}},
		}
		slogx.FromContext(ctx).Warn("authz_unknown_policy",
			slog.String("policy", policyName),
			slog.String("sub", claims.Subject()),
		)
		e.metrics.record(ctx, d)
		return d
	}
	return e.Evaluate(ctx, claims, p, opts...)
}

// Evaluate checks claims against every requirement of p in order. The
// decision allows only when all requirements succeed; a requirement with no
// handler, or whose handler panics, fails.
func (e *Engine) Evaluate(ctx context.Context, claims claimset.ClaimSet, p Policy, opts ...EvalOption) Decision {
	cfg := evalConfig{now: e.now()}
	for _, opt := range opts {
		opt(&cfg)
	}

	in := Input{Claims: claims, Resource: cfg.resource, Now: cfg.now}
	d := Decision{Policy: p.Name}

	if len(p.Requirements) == 0 {
		d.Failures = append(d.Failures, Failure{Reason: "policy has no requirements"})
	}

	for _, req := range p.Requirements {
		if ok, reason := e.handle(in, req); !ok {
			d.Failures = append(d.Failures, Failure{
				Kind:        req.Kind(),
				Requirement: req.String(),
				Reason:      reason,
			})
			if !cfg.diagnostics {
				break
			}
		}
	}

	d.Allowed = len(d.Failures) == 0

	if !d.Allowed {
		attrs := []any{
			slog.String("policy", p.Name),
			slog.String("sub", claims.Subject()),
		}
		for _, f := range d.Failures {
			attrs = append(attrs, slog.String("failed", f.Requirement+": "+f.Reason))
		}
		slogx.FromContext(ctx).Info("authz_denied", attrs...)
	}
	e.metrics.record(ctx, d)

	return d
}

func (e *Engine) handle(in Input, req Requirement) (ok bool, reason string) {
	if req == nil {
		return false, "nil requirement"
	}

	h, found := e.handlers[req.Kind()]
	if !found {
		return false, "no handler for kind"
	}

	defer func() {
		if r := recover(); r != nil {
			ok, reason = false, fmt.Sprintf("handler panic: %v", r)
		}
	}()

	if h.Handle(in, req) {
		return true, ""
	}
	return false, "not satisfied"
}
