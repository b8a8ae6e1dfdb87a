package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler answers readiness checks. It answers 503 while the user
// store, a separate refresh store or the signer is unavailable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	refresh store.RefreshStore,
	keys *jwtx.KeyManager,
	engine *authz.Engine,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:     "ok",
			RefreshStore: "ok",
			Signer:       "ok",
		}
		if engine != nil {
			checks.Policies = len(engine.Registry().Names())
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// The sqlite adapter shares the database; only external stores ping.
		if p, ok := refresh.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				checks.RefreshStore = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
