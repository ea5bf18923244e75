package store

import (
	"context"
	"sync"
	"time"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// MemoryNonceStore is an in-memory implementation of the NonceStore
// interface
type MemoryNonceStore struct {
	ttl    time.Duration
	mu     sync.Mutex
	nonces map[string]time.Time
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore(ttl time.Duration) ports.NonceStore {
	return &MemoryNonceStore{
		ttl:    ttl,
		nonces: make(map[string]time.Time),
	}
}

// Issue generates and records a fresh nonce
func (s *MemoryNonceStore) Issue(ctx context.Context) (*core.Nonce, error) {
	nonce, err := newNonce(s.ttl)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scrubLocked(time.Now())
	s.nonces[nonce.Value] = nonce.ExpiresAt

	return nonce, nil
}

// Consume spends the nonce; the mutex makes check-and-delete atomic so
// at most one concurrent caller succeeds
func (s *MemoryNonceStore) Consume(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.nonces[value]
	if !ok {
		return core.ErrInvalidNonce
	}

	// A consume attempt spends the nonce even when it turns out expired
	delete(s.nonces, value)

	if time.Now().After(expiresAt) {
		return core.ErrInvalidNonce
	}

	return nil
}

// scrubLocked drops expired nonces; callers hold the mutex
func (s *MemoryNonceStore) scrubLocked(now time.Time) {
	for value, expiresAt := range s.nonces {
		if now.After(expiresAt) {
			delete(s.nonces, value)
		}
	}
}

// MemorySessionStore is an in-memory implementation of the SessionStore
// interface
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]core.Session
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() ports.SessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]core.Session),
	}
}

// Save stores a copy of the session
func (s *MemorySessionStore) Save(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session

	return nil
}

// Get returns the session, dropping it when it has expired
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		delete(s.sessions, id)
		return nil, core.ErrSessionExpired
	}

	return &session, nil
}

// Rotate replaces the session stored under oldID with session; the
// mutex makes the swap atomic so concurrent rotations of the same
// session resolve to a single winner
func (s *MemorySessionStore) Rotate(ctx context.Context, oldID string, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[oldID]
	if !ok {
		return core.ErrSessionNotFound
	}

	delete(s.sessions, oldID)

	if time.Now().After(current.ExpiresAt) {
		return core.ErrSessionExpired
	}

	s.sessions[session.ID] = *session

	return nil
}

// Delete removes the session; absent sessions are a no-op
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}
