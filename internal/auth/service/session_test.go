package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/claimset"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"
)

func TestLoginAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "admin", pair.User.Username)

	claims, err := f.tokens.Validate(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"Admin"}, claims.Roles())
	require.Equal(t, pair.User.ID, claims.Subject())
	name, _ := claims.Get(claimset.Name)
	require.Equal(t, "Administrator", name)

	rec, err := f.refresh.GetRefreshTokenByHash(ctx, cryptox.SecretDigest(pair.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, pair.User.ID, rec.UserID)
	require.NotEqual(t, pair.RefreshToken, rec.TokenHash, "only the fingerprint is stored")

	_, err = f.sessions.Login(ctx, "admin", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	// The access token has expired; refresh still binds to its subject.
	f.clock.Advance(jwtx.DefaultAccessTokenTTL + time.Minute)
	_, err = f.tokens.Validate(first.AccessToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	second, err := f.sessions.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.NotEqual(t, first.TokenID, second.TokenID)

	claims, err := f.tokens.Validate(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, first.User.ID, claims.Subject())

	oldRec, err := f.refresh.GetRefreshTokenByHash(ctx, cryptox.SecretDigest(first.RefreshToken))
	require.NoError(t, err)
	newRec, err := f.refresh.GetRefreshTokenByHash(ctx, cryptox.SecretDigest(second.RefreshToken))
	require.NoError(t, err)
	require.True(t, oldRec.Revoked)
	require.Equal(t, oldRec.SessionID, newRec.SessionID)

	third, err := f.sessions.Refresh(ctx, second.AccessToken, second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestRefreshReuseRevokesEverySession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	laptop, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	phone, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	editor, err := f.sessions.Login(ctx, "editor", "editor123")
	require.NoError(t, err)

	rotated, err := f.sessions.Refresh(ctx, laptop.AccessToken, laptop.RefreshToken)
	require.NoError(t, err)

	// The spent value comes back.
	_, err = f.sessions.Refresh(ctx, laptop.AccessToken, laptop.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	for name, p := range map[string]string{"rotated": rotated.RefreshToken, "phone": phone.RefreshToken} {
		rec, err := f.refresh.GetRefreshTokenByHash(ctx, cryptox.SecretDigest(p))
		require.NoError(t, err)
		require.True(t, rec.Revoked, name)
	}
	_, err = f.sessions.Refresh(ctx, rotated.AccessToken, rotated.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = f.sessions.Refresh(ctx, editor.AccessToken, editor.RefreshToken)
	require.NoError(t, err, "other users keep their sessions")
}

func TestRefreshIssuesOnlyForTheWinner(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewTokenMetrics(mp.Meter("test"))
	require.NoError(t, err)

	f := newFixture(t)
	f.tokens.Metrics = m
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.sessions.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
			if errors.Is(err, ErrInvalidRefresh) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var issued int64
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "auth.tokens.issued" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				issued += dp.Value
			}
		}
	}
	require.EqualValues(t, 2, issued, "one for login, one for the winning refresh")
}

func TestRefreshRejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	editor, err := f.sessions.Login(ctx, "editor", "editor123")
	require.NoError(t, err)

	t.Run("subject mismatch", func(t *testing.T) {
		_, err := f.sessions.Refresh(ctx, editor.AccessToken, admin.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("garbage access token", func(t *testing.T) {
		_, err := f.sessions.Refresh(ctx, "garbage", admin.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		_, err := f.sessions.Refresh(ctx, admin.AccessToken, "not-issued")
		require.ErrorIs(t, err, ErrInvalidRefresh)
		_, err = f.sessions.Refresh(ctx, admin.AccessToken, "")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	// None of the failures above consumed the admin refresh token.
	_, err = f.sessions.Refresh(ctx, admin.AccessToken, admin.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshAfterRefreshExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	f.clock.Advance(jwtx.DefaultRefreshTokenTTL)
	_, err = f.sessions.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	var wins, losses atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.sessions.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidRefresh):
				losses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, 7, losses.Load())
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, f.sessions.Revoke(ctx, pair.RefreshToken), "revoking twice is fine")
	require.NoError(t, f.sessions.Revoke(ctx, "never-issued"))

	_, err = f.sessions.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestDisabledUserCannotRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Login(ctx, "editor", "editor123")
	require.NoError(t, err)
	require.NoError(t, f.store.Users().SetDisabled(ctx, pair.User.ID, true))

	_, err = f.sessions.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}
