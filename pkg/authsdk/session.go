package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time // refresh deadline, already reduced by the buffer
	subject      Subject
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.apply(tokenResp)
	return s
}

// apply stores a token response. Callers hold the write lock or own s.
func (s *Session) apply(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.Token
	s.refreshToken = tokenResp.RefreshToken
	s.expiresAt = tokenResp.ExpiresAt.Add(-s.client.RefreshBuffer)
	s.subject = tokenResp.Subject
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token available")
	}

	tokenResp, err := s.client.RefreshGrant(ctx, s.accessToken, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.apply(tokenResp)
	return s.accessToken, nil
}

// Refresh rotates the token pair now, regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenResp, err := s.client.RefreshGrant(ctx, s.accessToken, s.refreshToken)
	if err != nil {
		return err
	}
	s.apply(tokenResp)
	return nil
}

// Revoke revokes the current refresh token, invalidating this session.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return fmt.Errorf("no refresh token to revoke")
	}

	return s.client.RevokeToken(ctx, refreshToken)
}

// Me returns the authenticated subject and every claim its token carries.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.doRequest(ctx, http.MethodGet, "/v1/me", nil, token)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// Authorize asks the service whether the named policy allows this session.
// A denial is (false, nil); transport and authentication failures are errors.
func (s *Session) Authorize(ctx context.Context, policy string) (bool, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return false, err
	}

	resp, err := s.client.doRequest(ctx, http.MethodGet, "/v1/authorize/"+url.PathEscape(policy), nil, token)
	if err != nil {
		return false, err
	}

	err = checkStatusNoContent(resp)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Subject returns the subject from the latest token response.
func (s *Session) Subject() Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}
