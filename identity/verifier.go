package identity

import (
	"context"
	"errors"
)

var (
	// ErrIdentityRejected is returned when the external identity provider
	// declines the assertion (bad signature, expired, wrong audience...).
	ErrIdentityRejected = errors.New("identity assertion rejected")

	// ErrUnavailable is returned when the provider's keys cannot be
	// fetched. It is an infrastructure fault, not an auth decision.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Subject is the durable principal produced by the identity provider.
// Immutable once issued; this service never mutates it.
type Subject struct {
	ID            string
	Email         string
	EmailVerified bool
}

// Verifier checks an externally-issued identity assertion. This is the only
// point where an outside identity provider is consulted; implementations
// must treat it as untrusted network I/O and fail closed.
type Verifier interface {
	Check(ctx context.Context, assertion string) (*Subject, error)
}
