package authsdk

import (
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// ============================================================================
// Token Types
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /v1/auth/refresh. Token is the access
// token being replaced; it may be expired.
type RefreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// RevokeRequest is the body of POST /v1/auth/revoke.
type RevokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// Token is the signed access token
	Token string `json:"token"`

	// ExpiresAt is when Token stops validating
	ExpiresAt time.Time `json:"expiresAt"`

	// RefreshToken is the opaque single use refresh value
	RefreshToken string `json:"refreshToken"`

	// Subject describes who the token was issued to
	Subject Subject `json:"subject"`
}

// Subject is the public view of an authenticated principal.
type Subject struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// MeResponse is returned by GET /v1/me.
type MeResponse struct {
	Subject Subject `json:"subject"`

	// Claims is every claim the presented token carries.
	Claims map[string][]string `json:"claims"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the user store status
	Database string `json:"database"`

	// RefreshStore indicates the refresh token store status
	RefreshStore string `json:"refresh_store"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// Policies is the number of registered policies
	Policies int `json:"policies"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
