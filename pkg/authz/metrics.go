package authz

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeAllow = "allow"
	outcomeDeny  = "deny"
)

// decisionMetrics counts decisions per policy and outcome.
type decisionMetrics struct {
	decisions metric.Int64Counter
}

func newDecisionMetrics(meter metric.Meter) (*decisionMetrics, error) {
	decisions, err := meter.Int64Counter(
		"authz.decisions",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	return &decisionMetrics{decisions: decisions}, nil
}

func (m *decisionMetrics) record(ctx context.Context, d Decision) {
	outcome := outcomeDeny
	if d.Allowed {
		outcome = outcomeAllow
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", d.Policy),
		attribute.String("outcome", outcome),
	))
}
