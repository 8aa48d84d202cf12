package service

import "errors"

var (
	// ErrMalformed means the presented credential is structurally invalid:
	// bad encoding, bad signature, unknown key, or the wrong token use.
	ErrMalformed = errors.New("service: malformed credential")

	// ErrExpired means the credential was valid once but its lifetime elapsed.
	ErrExpired = errors.New("service: credential expired")

	// ErrStale means the refresh token was already rotated or revoked. A
	// structurally valid but stale token is evidence of replay.
	ErrStale = errors.New("service: refresh token superseded")

	// ErrInvalidCredentials covers every password-login failure. Deliberately
	// indistinguishable between unknown account and wrong password.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	// ErrNoEmail means the federated provider attested no usable email, so
	// the account cannot be linked or provisioned.
	ErrNoEmail = errors.New("service: federated identity has no email")

	// ErrRateLimited means the caller exhausted its admission window.
	ErrRateLimited = errors.New("service: rate limited")
)
