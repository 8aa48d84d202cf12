package service

import (
	"context"
	"errors"
	"time"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/cryptox"
	"github.com/bookery-social/bookery/pkg/idx"
	"github.com/bookery-social/bookery/pkg/jwtx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// TokenConfig carries the tunable parts of the token lifecycle.
type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration // defaults to jwtx.DefaultAccessTokenTTL
	RefreshTTL time.Duration // defaults to jwtx.DefaultRefreshTokenTTL
}

// TokenService owns the credential lifecycle: registration, login, stateless
// access verification, single-use refresh rotation and revocation.
type TokenService struct {
	store    store.Store
	signer   *jwtx.EdDSASigner
	verifier jwtx.Verifier

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time // overridable in tests
}

func NewTokenService(st store.Store, signer *jwtx.EdDSASigner, verifier jwtx.Verifier, cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	return &TokenService{
		store:      st,
		signer:     signer,
		verifier:   verifier,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// mintPair signs a fresh access/refresh pair for u and returns the pair plus
// the refresh token's fingerprint. Nothing is persisted here.
func (s *TokenService) mintPair(u domain.User) (domain.TokenPair, string, error) {
	now := s.now().UTC()

	access, err := s.signer.Sign(
		jwtx.NewTokenClaims(u.ID, jwtx.UseAccess, s.issuer, u.Handle, s.accessTTL, now))
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	refresh, err := s.signer.Sign(
		jwtx.NewTokenClaims(u.ID, jwtx.UseRefresh, s.issuer, u.Handle, s.refreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	pair := domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}
	return pair, cryptox.FingerprintToken(refresh), nil
}

// Issue mints a token pair for an existing user and stores the new refresh
// fingerprint, superseding whatever was there before.
func (s *TokenService) Issue(ctx context.Context, userID string) (domain.TokenPair, error) {
	u, err := s.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return s.issueFor(ctx, u)
}

func (s *TokenService) issueFor(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	pair, fp, err := s.mintPair(u)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.store.Users().SaveRefreshFingerprint(ctx, u.ID, &fp); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Register creates a local account and logs it straight in.
func (s *TokenService) Register(ctx context.Context, handle, email, displayName, password string) (domain.SafeUser, domain.TokenPair, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}

	u := domain.User{
		ID:           idx.New().String(),
		Handle:       handle,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.store.Users().CreateUser(ctx, u); err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID, "handle", u.Handle)

	pair, err := s.issueFor(ctx, u)
	if err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}
	return u.Safe(), pair, nil
}

// Login authenticates by handle or email plus password. Every failure mode
// collapses into ErrInvalidCredentials so callers cannot probe for accounts.
func (s *TokenService) Login(ctx context.Context, handleOrEmail, password string) (domain.TokenPair, error) {
	u, err := s.store.Users().GetUserByHandle(ctx, handleOrEmail)
	if errors.Is(err, store.ErrNotFound) {
		u, err = s.store.Users().GetUserByEmail(ctx, handleOrEmail)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	return s.issueFor(ctx, u)
}

// VerifyAccess validates an access token without touching the store. Returns
// the embedded claims when the token is genuine, unexpired and of access use.
func (s *TokenService) VerifyAccess(_ context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, ErrExpired
		}
		return jwtx.Claims{}, ErrMalformed
	}
	if err := claims.ValidateUse(jwtx.UseAccess); err != nil {
		return jwtx.Claims{}, ErrMalformed
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh pair. The presented
// token must still match the stored fingerprint; the swap to the new
// fingerprint is conditional, so of two concurrent rotations with the same
// token exactly one wins and the other observes ErrStale.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.verifier.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.TokenPair{}, ErrExpired
		}
		return domain.TokenPair{}, ErrMalformed
	}
	if err := claims.ValidateUse(jwtx.UseRefresh); err != nil {
		return domain.TokenPair{}, ErrMalformed
	}

	u, err := s.store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrStale
		}
		return domain.TokenPair{}, err
	}

	pair, nextFP, err := s.mintPair(u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	presentedFP := cryptox.FingerprintToken(refreshToken)
	swapped, err := s.store.Users().SaveRefreshFingerprintIfMatches(ctx, u.ID, presentedFP, nextFP)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !swapped {
		slogx.FromContext(ctx).Warn("stale refresh token presented", "user_id", u.ID)
		return domain.TokenPair{}, ErrStale
	}

	return pair, nil
}

// Revoke invalidates the presented refresh token (logout). The token only
// needs to be structurally valid: an expired one is still good evidence of
// which fingerprint to clear. Revoking an already superseded token is a
// silent no-op.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.verifier.VerifyIgnoreExpiry(refreshToken)
	if err != nil {
		return ErrMalformed
	}
	if err := claims.ValidateUse(jwtx.UseRefresh); err != nil {
		return ErrMalformed
	}

	fp := cryptox.FingerprintToken(refreshToken)
	return s.store.Users().ClearRefreshFingerprintIfMatches(ctx, claims.Subject, fp)
}
