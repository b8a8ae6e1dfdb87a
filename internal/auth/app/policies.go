package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"go.opentelemetry.io/otel/metric"
)

// InitPolicies builds the authorization engine from AUTH_POLICY_FILE, or
// from the built in policy table when no file is configured. Any policy that
// names a requirement kind without a handler stops startup.
func InitPolicies(cfg Config, meter metric.Meter, logger *slog.Logger) (*authz.Engine, error) {
	reg := authz.NewRegistry()

	if cfg.PolicyFile != "" {
		if err := authz.LoadPolicyFile(cfg.PolicyFile, reg, authz.DefaultDecoders()); err != nil {
			return nil, fmt.Errorf("failed to load policies from %s: %w", cfg.PolicyFile, err)
		}
	} else if err := authz.RegisterDefaults(reg); err != nil {
		return nil, fmt.Errorf("failed to register default policies: %w", err)
	}

	engine, err := authz.NewEngine(reg, authz.WithMeter(meter))
	if err != nil {
		return nil, err
	}

	logger.Info("authorization policies loaded",
		"source", policySource(cfg),
		"policies", reg.Names(),
		"kinds", engine.Kinds(),
	)
	return engine, nil
}

func policySource(cfg Config) string {
	if cfg.PolicyFile != "" {
		return cfg.PolicyFile
	}
	return "builtin"
}
