// Package google implements the federated identity exchange against
// Google's OIDC endpoints.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookery-social/bookery/internal/oauth"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	// ErrNoIDToken means the token response carried no id_token.
	ErrNoIDToken = errors.New("google: token response missing id_token")

	// ErrEmailUnverified means Google has not verified the email address.
	ErrEmailUnverified = errors.New("google: email not verified")
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Provider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ oauth.Provider = (*Provider)(nil)

// NewProvider discovers Google's OIDC configuration. Requires network
// access at startup.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("google: discovering provider: %w", err)
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange redeems the authorization code and validates the returned
// id_token. Only verified emails are accepted: the identity bridge links
// accounts by email, so an unverified claim would let an attacker bind
// someone else's account.
func (p *Provider) Exchange(ctx context.Context, code string) (oauth.Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return oauth.Identity{}, fmt.Errorf("google: exchanging code: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return oauth.Identity{}, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return oauth.Identity{}, fmt.Errorf("google: verifying id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return oauth.Identity{}, fmt.Errorf("google: decoding claims: %w", err)
	}
	if claims.Email != "" && !claims.EmailVerified {
		return oauth.Identity{}, ErrEmailUnverified
	}

	return oauth.Identity{
		ExternalID:  idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}
