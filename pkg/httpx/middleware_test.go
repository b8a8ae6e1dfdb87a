package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// stubValidator accepts tokens of the form "user:<id>:<role>".
type stubValidator struct{}

func (stubValidator) Validate(token string) (claimset.ClaimSet, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "user" {
		return claimset.ClaimSet{}, errors.New("bad token")
	}
	return claimset.NewBuilder(parts[1]).Add(claimset.Role, parts[2]).Build(), nil
}

type document struct{ owner string }

func (d document) OwnerID() string { return d.owner }

func newTestEngine(t *testing.T) *authz.Engine {
	t.Helper()
	reg := authz.NewRegistry()
	require.NoError(t, authz.RegisterDefaults(reg))
	engine, err := authz.NewEngine(reg)
	require.NoError(t, err)
	return engine
}

func request(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/docs/42", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	request(httpx.Chain(okHandler, mark("a"), mark("b"), mark("c")), "")
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	var seen claimset.ClaimSet
	h := httpx.AuthnMiddleware(stubValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := request(h, "user:u1:Admin")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "u1", seen.Subject())

	for name, token := range map[string]string{"missing": "", "invalid": "forged"} {
		t.Run(name, func(t *testing.T) {
			rec := request(h, token)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

			var body httpx.ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, "unauthenticated", body.Error)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, ok := httpx.BearerToken(req)
	require.False(t, ok)
}

func TestRequirePolicy(t *testing.T) {
	engine := newTestEngine(t)
	h := httpx.Chain(okHandler,
		httpx.AuthnMiddleware(stubValidator{}),
		httpx.RequirePolicy(engine, authz.PolicyAdminOnly),
	)

	require.Equal(t, http.StatusOK, request(h, "user:u1:Admin").Code)

	rec := request(h, "user:u2:User")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "forbidden", body.Error)
	require.NotContains(t, body.Description, "Admin", "denials do not leak the policy")

	require.Equal(t, http.StatusUnauthorized, request(h, "").Code)

	// Without authentication in front the policy cannot be evaluated.
	bare := httpx.RequirePolicy(engine, authz.PolicyAdminOnly)(okHandler)
	require.Equal(t, http.StatusUnauthorized, request(bare, "user:u1:Admin").Code)
}

func TestRequirePolicyOnResource(t *testing.T) {
	engine := newTestEngine(t)
	load := func(r *http.Request) (any, error) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/docs/"):
			return document{owner: "u1"}, nil
		case r.URL.Path == "/broken":
			return nil, errors.New("database is locked")
		default:
			return nil, fmt.Errorf("document %s: %w", r.URL.Path, httpx.ErrResourceNotFound)
		}
	}
	h := httpx.Chain(okHandler,
		httpx.AuthnMiddleware(stubValidator{}),
		httpx.RequirePolicyOn(engine, authz.PolicyOwnerOnly, load),
	)

	require.Equal(t, http.StatusOK, request(h, "user:u1:User").Code)
	require.Equal(t, http.StatusForbidden, request(h, "user:u2:Admin").Code)

	req := httptest.NewRequest(http.MethodGet, "/elsewhere", nil)
	req.Header.Set("Authorization", "Bearer user:u1:User")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Storage failures are not disguised as missing resources.
	req = httptest.NewRequest(http.MethodGet, "/broken", nil)
	req.Header.Set("Authorization", "Bearer user:u1:User")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "server_error", body.Error)
	require.NotContains(t, body.Description, "locked")
}

var _ httpx.PolicyAuthorizer = (*authz.Engine)(nil)

func TestClaimsFromContextRejectsZero(t *testing.T) {
	ctx := httpx.WithClaims(context.Background(), claimset.ClaimSet{})
	_, ok := httpx.ClaimsFromContext(ctx)
	require.False(t, ok)
}
