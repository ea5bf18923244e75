package core

import "time"

// Nonce is a single-use login challenge
type Nonce struct {
	Value     string    // Random hex token the client embeds in its message
	IssuedAt  time.Time // When the nonce was issued
	ExpiresAt time.Time // When the nonce stops being accepted
}

// Wallet is an Ethereum address treated as a user identity
type Wallet struct {
	Address    string    // Lowercase hex address, the primary identity key
	ENSName    string    // Reverse-resolved ENS name, empty when none
	ENSAvatar  string    // ENS avatar text record, empty when none
	CreatedAt  time.Time // When the wallet first authenticated
	LastAuthAt time.Time // Most recent successful authentication
	IsActive   bool      // Disabled wallets are refused at login
	IsAdmin    bool      // Administrative flag, managed externally
}

// Session represents an authenticated user session
type Session struct {
	ID           string    // Opaque unguessable identifier
	Address      string    // Wallet address the session is bound to, immutable
	CreatedAt    time.Time // When the session was first established
	ExpiresAt    time.Time // When the session expires
	RefreshCount int       // Number of rotations performed so far
}

// VerifiedIdentity is the outcome of a successful message verification
type VerifiedIdentity struct {
	Address  string    // Recovered signer address, lowercase hex
	ChainID  int       // Chain the client signed in on
	IssuedAt time.Time // Issuance time of the verified message
}

// ENSProfile holds the best-effort ENS enrichment for a wallet
type ENSProfile struct {
	Name   string // Reverse record, empty when unset
	Avatar string // Avatar text record of the name, empty when unset
}
