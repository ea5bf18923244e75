// Package eth holds the low-level Ethereum crypto helpers the rest of
// the service builds on: EIP-191 personal-sign recovery and the ENS
// name hashing scheme.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of an [R || S || V] signature.
const SignatureLength = 65

// RecoverAddress recovers the address that produced an EIP-191
// personal-sign signature over message. Both recovery id conventions
// (0/1 and 27/28) are accepted.
func RecoverAddress(message []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, errors.New("invalid recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignMessage produces an EIP-191 personal-sign signature over message
// with the 27/28 recovery id convention wallets use.
func SignMessage(message []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
