package ports

import (
	"context"

	"github.com/gatewarden/gatewarden/core"
)

// NonceStore issues and single-use-consumes login nonces
type NonceStore interface {
	// Issue generates a fresh nonce and records it with its expiry.
	Issue(ctx context.Context) (*core.Nonce, error)

	// Consume atomically spends the nonce. Missing, expired and
	// already-used nonces all fail with core.ErrInvalidNonce; at most
	// one concurrent caller succeeds for a given value.
	Consume(ctx context.Context, value string) error
}

// SessionStore persists sessions keyed by their identifier
type SessionStore interface {
	// Save stores the session until its expiry.
	Save(ctx context.Context, session *core.Session) error

	// Get returns the session or core.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*core.Session, error)

	// Rotate atomically replaces the session stored under oldID with
	// session. It fails with core.ErrSessionNotFound when oldID is
	// gone, so concurrent rotations of the same session resolve to a
	// single winner.
	Rotate(ctx context.Context, oldID string, session *core.Session) error

	// Delete removes the session. Deleting an absent session is a
	// no-op.
	Delete(ctx context.Context, id string) error
}
