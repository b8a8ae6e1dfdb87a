package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// TokenMetrics counts issued and validated access tokens. A nil
// *TokenMetrics records nothing.
type TokenMetrics struct {
	issuedCounter    metric.Int64Counter
	validatedCounter metric.Int64Counter
}

// NewTokenMetrics registers the token instruments on meter. A nil meter
// falls back to a no-op implementation.
func NewTokenMetrics(meter metric.Meter) (*TokenMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("gatekeeper/auth")
	}

	issued, err := meter.Int64Counter("auth.tokens.issued",
		metric.WithDescription("Access tokens signed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	validated, err := meter.Int64Counter("auth.tokens.validated",
		metric.WithDescription("Access token validations by result"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	return &TokenMetrics{issuedCounter: issued, validatedCounter: validated}, nil
}

func (m *TokenMetrics) issued() {
	if m == nil {
		return
	}
	m.issuedCounter.Add(context.Background(), 1)
}

func (m *TokenMetrics) validated(err error) {
	if m == nil {
		return
	}
	m.validatedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("result", validationResult(err))))
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, jwtx.ErrExpired):
		return "expired"
	case errors.Is(err, jwtx.ErrInvalidSig), errors.Is(err, jwtx.ErrUnknownKID):
		return "invalid_signature"
	case errors.Is(err, jwtx.ErrIssuer):
		return "issuer"
	case errors.Is(err, jwtx.ErrAudience):
		return "audience"
	default:
		return "malformed"
	}
}
