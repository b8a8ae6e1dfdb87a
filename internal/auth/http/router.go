package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// RateLimits groups the limiter profiles applied per route family.
type RateLimits struct {
	Login         httpx.RateLimitConfig // per IP + username
	Refresh       httpx.RateLimitConfig // per IP
	Authenticated httpx.RateLimitConfig // per subject
	PreAuth       httpx.RateLimitConfig // per IP, in front of token checks
	Public        httpx.RateLimitConfig // per IP
}

// DefaultRateLimits returns the built in profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Login:         httpx.StrictLimit,
		Refresh:       httpx.ModerateLimit,
		Authenticated: httpx.ModerateLimit,
		PreAuth:       httpx.PublicLimit,
		Public:        httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	refresh store.RefreshStore

	Sessions *service.SessionService
	Tokens   *service.TokenService
	Engine   *authz.Engine
	Limits   RateLimits

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	refresh store.RefreshStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		refresh:      refresh,
		logger:       logger,
		Limits:       DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route. Sessions, Tokens and Engine must be
// set first.
func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerProfile()
	r.registerAuthorize()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.Sessions}

	// Brute force protection: keyed by IP + username so one noisy client
	// cannot lock out everyone behind the same address.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.Limits.Login, "username"),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Refresh),
		),
	)

	r.Mux.Handle("POST /v1/auth/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.RateLimitByIP(r.Limits.Refresh),
		),
	)
}

// authenticated is the front of every bearer protected route. The IP
// limiter runs first so requests with missing or forged tokens are limited
// too; the subject limiter then budgets each caller.
func (r *Router) authenticated() []httpx.Middleware {
	return []httpx.Middleware{
		httpx.RateLimitByIP(r.Limits.PreAuth),
		httpx.AuthnMiddleware(r.Tokens),
		httpx.RateLimitBySubject(r.Limits.Authenticated),
	}
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Sessions: r.Sessions}

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe), r.authenticated()...),
	)

	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUser),
			append(r.authenticated(), httpx.RequirePolicyOn(r.Engine, authz.PolicyOwnerOnly, h.userResource))...,
		),
	)
}

func (r *Router) registerAuthorize() {
	r.Mux.Handle("GET /v1/authorize/{policy}",
		httpx.Chain(&AuthorizeHandler{Engine: r.Engine}, r.authenticated()...),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.refresh, r.keys, r.Engine),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(r.Metrics,
				httpx.RateLimitByIP(r.Limits.Public),
			),
		)
	}
}
