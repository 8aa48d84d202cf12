// Package oauth defines the contract for exchanging a third-party
// identity assertion for a verified identity. Concrete providers live
// in subpackages.
package oauth

import "context"

// Identity is what a provider vouches for after a successful exchange.
type Identity struct {
	// ExternalID is the provider's stable subject identifier.
	ExternalID string

	// Email is the verified contact address. Empty when the provider
	// did not verify one.
	Email string

	// DisplayName is the human-readable name, best effort.
	DisplayName string
}

// Provider exchanges an authorization code for a verified identity.
type Provider interface {
	// Exchange redeems the code, validates the resulting assertion and
	// returns the identity it attests to.
	Exchange(ctx context.Context, code string) (Identity, error)

	// AuthCodeURL builds the URL the client is redirected to for consent.
	AuthCodeURL(state string) string
}
