package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/oauth"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/cryptox"
	"github.com/bookery-social/bookery/pkg/idx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

const (
	maxHandleLength = 20
	fallbackHandle  = "reader"
)

// IdentityService bridges federated logins onto local principals: it
// exchanges a provider assertion for an identity, links it to an existing
// account where one matches, provisions one otherwise, and hands off to the
// token service either way.
type IdentityService struct {
	store    store.Store
	provider oauth.Provider
	tokens   *TokenService
}

func NewIdentityService(st store.Store, provider oauth.Provider, tokens *TokenService) *IdentityService {
	return &IdentityService{store: st, provider: provider, tokens: tokens}
}

// AuthCodeURL builds the provider consent URL for the given state.
func (s *IdentityService) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// ExchangeFederated redeems a provider authorization code and returns a token
// pair for the linked or newly provisioned local user. Idempotent per
// external identity: a second exchange for the same subject lands on the same
// principal, it never provisions a duplicate.
func (s *IdentityService) ExchangeFederated(ctx context.Context, code string) (domain.SafeUser, domain.TokenPair, error) {
	ident, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}
	if ident.Email == "" {
		return domain.SafeUser{}, domain.TokenPair{}, ErrNoEmail
	}

	u, err := s.linkOrProvision(ctx, ident)
	if err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}

	pair, err := s.tokens.issueFor(ctx, u)
	if err != nil {
		return domain.SafeUser{}, domain.TokenPair{}, err
	}
	return u.Safe(), pair, nil
}

func (s *IdentityService) linkOrProvision(ctx context.Context, ident oauth.Identity) (domain.User, error) {
	u, err := s.store.Users().GetUserByExternalOrEmail(ctx, ident.ExternalID, ident.Email)
	switch {
	case err == nil:
		return s.ensureLinked(ctx, u, ident.ExternalID)
	case errors.Is(err, store.ErrNotFound):
		return s.provision(ctx, ident)
	default:
		return domain.User{}, err
	}
}

// ensureLinked writes the external-id linkage onto a locally registered
// account matched by email. The write is one-way at the store, so a
// concurrent exchange linking the same account is harmless.
func (s *IdentityService) ensureLinked(ctx context.Context, u domain.User, externalID string) (domain.User, error) {
	if u.ExternalID != nil {
		return u, nil
	}

	err := s.store.Users().SetExternalID(ctx, u.ID, externalID)
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("federated identity linked", "user_id", u.ID)
	ext := externalID
	u.ExternalID = &ext
	return u, nil
}

func (s *IdentityService) provision(ctx context.Context, ident oauth.Identity) (domain.User, error) {
	handle, err := s.deriveHandle(ctx, ident.DisplayName, ident.Email)
	if err != nil {
		return domain.User{}, err
	}

	// Federated accounts never type a local password; store an unguessable
	// placeholder so the column invariants hold and a password can be set
	// later through account recovery.
	placeholder, err := cryptox.GeneratePassword()
	if err != nil {
		return domain.User{}, err
	}
	hash, err := cryptox.HashPassword(placeholder)
	if err != nil {
		return domain.User{}, err
	}

	ext := ident.ExternalID
	u := domain.User{
		ID:           idx.New().String(),
		Handle:       handle,
		Email:        ident.Email,
		DisplayName:  ident.DisplayName,
		PasswordHash: hash,
		ExternalID:   &ext,
	}

	err = s.store.Users().CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a provisioning race for the same identity. The winner's row
		// is the principal; link to it instead of failing the login.
		existing, lookupErr := s.store.Users().GetUserByExternalOrEmail(ctx, ident.ExternalID, ident.Email)
		if lookupErr != nil {
			return domain.User{}, err
		}
		return s.ensureLinked(ctx, existing, ident.ExternalID)
	}
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("federated user provisioned", "user_id", u.ID, "handle", u.Handle)
	return u, nil
}

// deriveHandle turns a display name (or, failing that, the email local part)
// into a unique handle: lowercased, stripped to [a-z0-9], truncated, and
// numerically suffixed until free.
func (s *IdentityService) deriveHandle(ctx context.Context, displayName, email string) (string, error) {
	base := sanitizeHandle(displayName)
	if base == "" {
		local, _, _ := strings.Cut(email, "@")
		base = sanitizeHandle(local)
	}
	if base == "" {
		base = fallbackHandle
	}

	candidate := base
	for suffix := 2; ; suffix++ {
		_, err := s.store.Users().GetUserByHandle(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
}

func sanitizeHandle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= maxHandleLength {
			break
		}
	}
	return b.String()
}
