package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gatewarden/gatewarden/core"
)

// nonceBytes is the entropy of a nonce value; 12 bytes give 96 bits,
// hex-encoded to 24 characters.
const nonceBytes = 12

func newNonce(ttl time.Duration) (*core.Nonce, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now()
	return &core.Nonce{
		Value:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
