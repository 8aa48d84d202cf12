package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/internal/store/drivers/sqlite"
	"github.com/bookery-social/bookery/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) (*TokenService, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)
	verifier := jwtx.NewVerifierEdDSA(keys, "bookery-test")

	svc := NewTokenService(st, signer, verifier, TokenConfig{Issuer: "bookery-test"})
	return svc, st
}

func registerTestUser(t *testing.T, svc *TokenService) string {
	t.Helper()
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "ada", "ada@example.com", "Ada L", "correct horse")
	require.NoError(t, err)
	return u.ID
}

func TestIssueAndVerifyAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("issued access token verifies back to the user", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Positive(t, pair.ExpiresIn)

		claims, err := svc.VerifyAccess(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, userID, claims.Subject)
		require.Equal(t, "ada", claims.Handle)
	})

	t.Run("expired access token is ErrExpired", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		_, err = svc.VerifyAccess(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("refresh token never verifies as access", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		_, err = svc.VerifyAccess(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("garbage is ErrMalformed", func(t *testing.T) {
		svc, _ := newTestTokenService(t)

		_, err := svc.VerifyAccess(ctx, "not.a.token")
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("issue for unknown user fails", func(t *testing.T) {
		svc, _ := newTestTokenService(t)

		_, err := svc.Issue(ctx, "01J0000000000000000000000X")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("by handle", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		registerTestUser(t, svc)

		pair, err := svc.Login(ctx, "ada", "correct horse")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
	})

	t.Run("by email", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		registerTestUser(t, svc)

		_, err := svc.Login(ctx, "ada@example.com", "correct horse")
		require.NoError(t, err)
	})

	t.Run("wrong password and unknown account are indistinguishable", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		registerTestUser(t, svc)

		_, err := svc.Login(ctx, "ada", "battery staple")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login(ctx, "nobody", "battery staple")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRotate(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation supersedes the old token", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		first, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		second, err := svc.Rotate(ctx, first.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		// The consumed token is gone for good.
		_, err = svc.Rotate(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrStale)

		// The replacement works.
		_, err = svc.Rotate(ctx, second.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("concurrent rotations with one token produce one winner", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		const racers = 8
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Rotate(ctx, pair.RefreshToken)
			}(i)
		}
		wg.Wait()

		wins, stales := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			default:
				require.ErrorIs(t, err, ErrStale)
				stales++
			}
		}
		require.Equal(t, 1, wins)
		require.Equal(t, racers-1, stales)
	})

	t.Run("access token never rotates", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		_, err = svc.Rotate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("expired refresh token is ErrExpired", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		svc.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)
		svc.now = time.Now

		_, err = svc.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrExpired)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked token cannot rotate", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

		_, err = svc.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrStale)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	})

	t.Run("expired token still revokes", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		svc.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
		pair, err := svc.Issue(ctx, userID)
		require.NoError(t, err)
		svc.now = time.Now

		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	})

	t.Run("garbage is ErrMalformed", func(t *testing.T) {
		svc, _ := newTestTokenService(t)

		err := svc.Revoke(ctx, "nonsense")
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("revoking a superseded token does not log out the new one", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		userID := registerTestUser(t, svc)

		first, err := svc.Issue(ctx, userID)
		require.NoError(t, err)
		second, err := svc.Rotate(ctx, first.RefreshToken)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, first.RefreshToken))

		_, err = svc.Rotate(ctx, second.RefreshToken)
		require.NoError(t, err)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate handle is a conflict", func(t *testing.T) {
		svc, _ := newTestTokenService(t)
		registerTestUser(t, svc)

		_, _, err := svc.Register(ctx, "ada", "other@example.com", "Other", "pw12345678")
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}
