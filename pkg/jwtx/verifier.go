package jwtx

import "errors"

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrWrongUse    = errors.New("jwtx: wrong token use")
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	// Verify checks signature, structure and time claims.
	Verify(token string) (Claims, error)

	// VerifyIgnoreExpiry checks signature and structure but tolerates an
	// elapsed exp. Revocation uses this: an expired refresh token is still
	// structurally valid evidence of which fingerprint to clear.
	VerifyIgnoreExpiry(token string) (Claims, error)
}
