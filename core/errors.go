package core

import "errors"

var (
	ErrMalformedMessage  = errors.New("malformed message")
	ErrDomainMismatch    = errors.New("domain mismatch")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrMessageExpired    = errors.New("message expired")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session has expired")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletDisabled    = errors.New("wallet is disabled")
	ErrChainUnavailable  = errors.New("chain provider unavailable")
	ErrMissingProvider   = errors.New("chain provider URL is required")
)
