package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// LoginGrant exchanges a username and password for a token pair.
func (c *SDKClient) LoginGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	resp, err := c.postJSON(ctx, "/v1/auth/login", LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// RefreshGrant rotates a refresh token. accessToken is the token the pair
// was issued with; it may already be expired. The old refresh token stops
// working once this call succeeds.
func (c *SDKClient) RefreshGrant(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	resp, err := c.postJSON(ctx, "/v1/auth/refresh", RefreshRequest{Token: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// RevokeToken revokes a refresh token. Revoking an unknown or already
// revoked token succeeds.
func (c *SDKClient) RevokeToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}

	resp, err := c.postJSON(ctx, "/v1/auth/revoke", RevokeRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
