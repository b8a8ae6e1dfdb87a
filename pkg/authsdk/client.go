package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Gatekeeper service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshBuffer is how long before expiry a Session refreshes its access
	// token. Default: 30 seconds.
	RefreshBuffer time.Duration
}

// NewSDKClient creates a new client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		RefreshBuffer: 30 * time.Second,
	}
}

// Login authenticates with a username and password and returns a session.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.LoginGrant(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates a session from a previously obtained pair.
// The session refreshes the access token once expiresAt is near.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresAt time.Time) *Session {
	return newSession(c, &TokenResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
}
