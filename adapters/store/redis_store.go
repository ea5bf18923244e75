package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// RedisNonceStore is a Redis implementation of the NonceStore interface
type RedisNonceStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) ports.NonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "gatewarden:nonce:",
		ttl:    ttl,
	}
}

// Issue generates a fresh nonce and records it with its TTL
func (s *RedisNonceStore) Issue(ctx context.Context) (*core.Nonce, error) {
	nonce, err := newNonce(s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, s.prefix+nonce.Value, "1", s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store nonce: %w", err)
	}

	return nonce, nil
}

// Consume spends the nonce. GETDEL reads and removes in one command,
// so concurrent consumers cannot both succeed.
func (s *RedisNonceStore) Consume(ctx context.Context, value string) error {
	if err := s.client.GetDel(ctx, s.prefix+value).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return core.ErrInvalidNonce
		}
		return fmt.Errorf("consume nonce: %w", err)
	}

	return nil
}

// rotateSessionScript swaps the old session record for the new one only
// while the old one still exists, in a single atomic step.
var rotateSessionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
return 1
`)

// RedisSessionStore is a Redis implementation of the SessionStore
// interface
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a new Redis session store
func NewRedisSessionStore(client *redis.Client) ports.SessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "gatewarden:session:",
	}
}

// Save stores the session with a TTL running to its expiry
func (s *RedisSessionStore) Save(ctx context.Context, session *core.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+session.ID, payload, sessionTTL(session)).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// Get returns the session; expired keys have been reaped by Redis and
// read as not found
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	payload, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session core.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &session, nil
}

// Rotate atomically replaces the record under oldID with session
func (s *RedisSessionStore) Rotate(ctx context.Context, oldID string, session *core.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	swapped, err := rotateSessionScript.Run(ctx, s.client,
		[]string{s.prefix + oldID, s.prefix + session.ID},
		payload, sessionTTL(session).Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if swapped == 0 {
		return core.ErrSessionNotFound
	}

	return nil
}

// Delete removes the session; absent keys are a no-op
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func sessionTTL(session *core.Session) time.Duration {
	ttl := time.Until(session.ExpiresAt)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}
