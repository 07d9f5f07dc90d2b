package token

import "errors"

var (
	// ErrMissingCredential is returned when no token was supplied at all.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential is returned for a bad signature, a malformed
	// token, or an expired token. The cases are intentionally not
	// distinguished to callers.
	ErrInvalidCredential = errors.New("invalid credential")
)
