package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	authhttp "github.com/aussiebroadwan/gatekeeper/internal/auth/http"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "gatekeeper-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	code := m.Run()
	_ = os.Remove(pepperPath)
	os.Exit(code)
}

type server struct {
	client *authsdk.SDKClient
	url    string
}

func newServer(t *testing.T, algorithm string, tweak func(*authhttp.Router)) *server {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	_, err = (&service.SeedService{Store: s}).Seed(context.Background(), service.DefaultSeed())
	require.NoError(t, err)

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: algorithm,
		Issuer:    "gatekeeper-test",
		Audience:  []string{"gatekeeper-api"},
		HMACKey:   []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	tokens := &service.TokenService{
		KeyManager: km,
		Issuer:     "gatekeeper-test",
		Audience:   []string{"gatekeeper-api"},
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
	}
	refresh := store.NewRefreshStoreAdapter(s)

	reg := authz.NewRegistry()
	require.NoError(t, authz.RegisterDefaults(reg))
	engine, err := authz.NewEngine(reg)
	require.NoError(t, err)

	logger := slogx.New(slogx.Config{Service: "gatekeeper", Env: "test", Level: "error"})
	router := authhttp.NewRouter(km, "test", s, refresh, logger)
	router.Tokens = tokens
	router.Engine = engine
	router.Sessions = &service.SessionService{
		Credentials:  &service.CredentialVerifier{Store: s},
		Tokens:       tokens,
		Store:        s,
		RefreshStore: refresh,
	}
	if tweak != nil {
		tweak(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &server{client: authsdk.NewSDKClient(srv.URL), url: srv.URL}
}

func TestLoginAndProfile(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)
	ctx := context.Background()

	session, err := srv.client.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, session.RefreshToken())
	require.Equal(t, []string{"Admin"}, session.Subject().Roles)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Subject().ID, me.Subject.ID)
	require.Equal(t, []string{"IT"}, me.Claims["department"])
	require.Equal(t, []string{"1985-04-12"}, me.Claims["birthdate"])

	_, err = srv.client.Login(ctx, "admin", "wrong")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	_, err = srv.client.Login(ctx, "nobody", "admin123")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
}

func TestUnauthenticatedRequests(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)
	ctx := context.Background()

	forged := srv.client.NewSessionFromTokens("not-a-token", "", time.Now().Add(time.Hour))
	_, err := forged.Me(ctx)
	require.ErrorIs(t, err, authsdk.ErrUnauthenticated)

	_, err = forged.Authorize(ctx, authz.PolicyAdminOnly)
	require.ErrorIs(t, err, authsdk.ErrUnauthenticated)

	resp, err := http.Get(srv.url + "/v1/me")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestAuthorizeEndpoint(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)
	ctx := context.Background()

	login := func(user, pass string) *authsdk.Session {
		s, err := srv.client.Login(ctx, user, pass)
		require.NoError(t, err)
		return s
	}
	admin := login("admin", "admin123")
	editor := login("editor", "editor123")
	user := login("user", "user123")

	tests := []struct {
		session *authsdk.Session
		policy  string
		want    bool
	}{
		{admin, authz.PolicyAdminOnly, true},
		{user, authz.PolicyAdminOnly, false},
		{editor, authz.PolicyAdminOrEditor, true},
		{user, authz.PolicyAdminOrEditor, false},
		{admin, authz.PolicyITDepartment, true},
		{editor, authz.PolicyITDepartment, false},
		{admin, authz.PolicySeniorITStaff, true},
		{editor, authz.PolicySeniorITStaff, false},
		{admin, "NoSuchPolicy", false},
	}

	for _, tt := range tests {
		ok, err := tt.session.Authorize(ctx, tt.policy)
		require.NoError(t, err)
		require.Equal(t, tt.want, ok, "%s on %s", tt.session.Subject().Name, tt.policy)
	}
}

func TestOwnerOnlyRoute(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)
	ctx := context.Background()

	user, err := srv.client.Login(ctx, "user", "user123")
	require.NoError(t, err)
	admin, err := srv.client.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	get := func(s *authsdk.Session, id string) int {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.url+"/v1/users/"+id, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+s.AccessToken())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, get(user, user.Subject().ID))
	require.Equal(t, http.StatusForbidden, get(admin, user.Subject().ID), "admins are not owners")
	require.Equal(t, http.StatusNotFound, get(user, "01J0000000000000000000000"))
}

func TestRefreshRotation(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)
	ctx := context.Background()

	session, err := srv.client.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	oldAccess, oldRefresh := session.AccessToken(), session.RefreshToken()

	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, oldRefresh, session.RefreshToken())

	// A refresh token only works with an access token of the same subject,
	// and a mismatch does not spend it.
	other, err := srv.client.Login(ctx, "user", "user123")
	require.NoError(t, err)
	_, err = srv.client.RefreshGrant(ctx, other.AccessToken(), session.RefreshToken())
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)
	require.NoError(t, session.Refresh(ctx))

	require.NoError(t, session.Revoke(ctx))
	require.NoError(t, session.Revoke(ctx), "revoke is idempotent")
	require.ErrorIs(t, session.Refresh(ctx), authsdk.ErrInvalidRefresh)

	// Replaying a spent value ends every session of its owner.
	fresh, err := srv.client.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	_, err = srv.client.RefreshGrant(ctx, oldAccess, oldRefresh)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)
	require.ErrorIs(t, fresh.Refresh(ctx), authsdk.ErrInvalidRefresh)
	require.NoError(t, other.Refresh(ctx), "other users are unaffected")

	_, err = fresh.Me(ctx)
	require.NoError(t, err, "access tokens stay valid until they expire")
}

func TestMalformedBodies(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, nil)

	for _, body := range []string{`{`, `{"username":"admin"}`, `{"username":"admin","password":"x","extra":1}`} {
		resp, err := http.Post(srv.url+"/v1/auth/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestLoginRateLimit(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, func(r *authhttp.Router) {
		r.Limits.Login = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})
	ctx := context.Background()

	for range 2 {
		_, err := srv.client.Login(ctx, "admin", "wrong")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	}
	_, err := srv.client.Login(ctx, "admin", "admin123")
	require.ErrorIs(t, err, authsdk.ErrRateLimited)

	_, err = srv.client.Login(ctx, "editor", "editor123")
	require.NoError(t, err, "other usernames keep their own budget")
}

func TestUnauthenticatedRequestsAreRateLimited(t *testing.T) {
	srv := newServer(t, jwtx.AlgorithmHS256, func(r *authhttp.Router) {
		r.Limits.PreAuth = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})

	get := func(path, token string) int {
		req, err := http.NewRequest(http.MethodGet, srv.url+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusUnauthorized, get("/v1/me", ""))
	require.Equal(t, http.StatusUnauthorized, get("/v1/me", "forged"))
	require.Equal(t, http.StatusTooManyRequests, get("/v1/me", "forged"))

	// Each route keeps its own budget.
	for _, path := range []string{"/v1/authorize/AdminOnly", "/v1/users/someone"} {
		require.Equal(t, http.StatusUnauthorized, get(path, ""), path)
		require.Equal(t, http.StatusUnauthorized, get(path, ""), path)
		require.Equal(t, http.StatusTooManyRequests, get(path, ""), path)
	}
}

func TestSystemEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("hs256", func(t *testing.T) {
		srv := newServer(t, jwtx.AlgorithmHS256, nil)

		live, err := srv.client.GetLiveness(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", live.Status)
		require.Equal(t, "test", live.Version)

		ready, err := srv.client.GetReadiness(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", ready.Status)
		require.Equal(t, 7, ready.Checks.Policies)

		_, err = srv.client.GetJWKS(ctx)
		require.ErrorIs(t, err, authsdk.ErrNotFound, "shared secrets are never published")
	})

	t.Run("eddsa", func(t *testing.T) {
		srv := newServer(t, jwtx.AlgorithmEdDSA, nil)

		jwks, err := srv.client.GetJWKS(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, jwks.Keys)

		session, err := srv.client.Login(ctx, "admin", "admin123")
		require.NoError(t, err)
		ok, err := session.Authorize(ctx, authz.PolicyAdminOnly)
		require.NoError(t, err)
		require.True(t, ok)
	})
}
