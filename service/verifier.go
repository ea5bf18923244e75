package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/internal/eth"
	"github.com/gatewarden/gatewarden/internal/siwe"
	"github.com/gatewarden/gatewarden/ports"
)

// DefaultClockSkew tolerates modest drift between client and server
// clocks when judging issuance times.
const DefaultClockSkew = 5 * time.Minute

// Verifier checks signed sign-in messages against the configured
// domain binding and resolves them to a wallet identity
type Verifier struct {
	domain string
	uri    string
	skew   time.Duration
	nonces ports.NonceStore
}

// NewVerifier creates a verifier bound to the expected domain and uri.
// An empty uri disables the uri check.
func NewVerifier(domain, uri string, skew time.Duration, nonces ports.NonceStore) *Verifier {
	if skew <= 0 {
		skew = DefaultClockSkew
	}

	return &Verifier{domain: domain, uri: uri, skew: skew, nonces: nonces}
}

// Verify validates msg and recovers its signer. The checks run in a
// fixed order and stop at the first failure: structure, domain
// binding, nonce, time window, signature. The nonce is spent as soon
// as verification reaches the consume step, so a failed attempt can
// never be retried with the same nonce.
func (v *Verifier) Verify(ctx context.Context, msg *siwe.Message, signature string) (*core.VerifiedIdentity, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Join(core.ErrMalformedMessage, err)
	}

	if msg.Domain != v.domain {
		return nil, core.ErrDomainMismatch
	}
	if v.uri != "" && msg.URI != v.uri {
		return nil, core.ErrDomainMismatch
	}

	if err := v.nonces.Consume(ctx, msg.Nonce); err != nil {
		return nil, err
	}

	issuedAt, err := msg.IssuedAtTime()
	if err != nil {
		return nil, errors.Join(core.ErrMalformedMessage, err)
	}
	now := time.Now()
	if issuedAt.After(now.Add(v.skew)) {
		return nil, core.ErrMessageExpired
	}
	if msg.ExpirationTime != "" {
		expirationTime, err := msg.ExpirationTimeTime()
		if err != nil {
			return nil, errors.Join(core.ErrMalformedMessage, err)
		}
		if now.After(expirationTime) {
			return nil, core.ErrMessageExpired
		}
	}
	if msg.NotBefore != "" {
		notBefore, err := msg.NotBeforeTime()
		if err != nil {
			return nil, errors.Join(core.ErrMalformedMessage, err)
		}
		if now.Before(notBefore) {
			return nil, core.ErrMessageExpired
		}
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, errors.Join(core.ErrSignatureMismatch, err)
	}
	recovered, err := eth.RecoverAddress([]byte(msg.String()), sig)
	if err != nil {
		return nil, errors.Join(core.ErrSignatureMismatch, err)
	}
	if !strings.EqualFold(recovered.Hex(), msg.Address) {
		return nil, core.ErrSignatureMismatch
	}

	return &core.VerifiedIdentity{
		Address:  strings.ToLower(recovered.Hex()),
		ChainID:  msg.ChainID,
		IssuedAt: issuedAt,
	}, nil
}
