package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens are short-lived because verification is
// fully stateless: a stolen one cannot be revoked, it can only age out.
// Refresh tokens are long-lived and single-use per rotation.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Token use values carried in the "use" claim. A refresh token must never be
// accepted where an access token is expected, and vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims are the claims embedded in both halves of a token pair. The two
// differ only in TTL and the "use" claim.
type Claims struct {
	jwt.RegisteredClaims

	// Use distinguishes access from refresh credentials.
	Use string `json:"use,omitempty"`

	// Handle is the user's public handle, included so resource handlers can
	// display it without a store round-trip.
	Handle string `json:"handle,omitempty"`
}

// NewTokenClaims builds minimally-correct claims for one half of a pair.
func NewTokenClaims(subject, use, issuer, handle string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Use:    use,
		Handle: handle,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateUse checks the "use" claim against the expected token use.
func (c *Claims) ValidateUse(expected string) error {
	if c.Use != expected {
		return ErrWrongUse
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
