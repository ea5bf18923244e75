// Package siwe implements the EIP-4361 (Sign-In with Ethereum)
// structured message: parsing, canonical serialization and field
// validation. Signature checks live with the verifier, not here.
package siwe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SupportedVersion is the only message version this service accepts.
const SupportedVersion = "1"

// Message carries the fields of an EIP-4361 message. Timestamps are
// kept in their wire form so the canonical serialization reproduces
// the exact bytes the client signed. JSON tags match the field object
// clients submit on login.
type Message struct {
	Domain         string   `json:"domain"`
	Address        string   `json:"address"`
	Statement      string   `json:"statement,omitempty"`
	URI            string   `json:"uri"`
	Version        string   `json:"version"`
	ChainID        int      `json:"chainId"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issuedAt"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	NotBefore      string   `json:"notBefore,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`
}

// String renders the message in the canonical EIP-4361 text layout.
// These are the bytes the wallet signs.
func (m *Message) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", m.Domain)
	b.WriteString(m.Address)
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt)

	if m.ExpirationTime != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime)
	}
	if m.NotBefore != "" {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore)
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}

	return b.String()
}

// Validate checks the structural requirements: required fields are
// present, the address is hex-formed, the version is supported and all
// timestamps parse.
func (m *Message) Validate() error {
	if m.Domain == "" {
		return errors.New("domain is required")
	}
	if m.Address == "" {
		return errors.New("address is required")
	}
	if !common.IsHexAddress(m.Address) {
		return fmt.Errorf("address %q is not a valid hex address", m.Address)
	}
	if m.URI == "" {
		return errors.New("uri is required")
	}
	if m.Version != SupportedVersion {
		return fmt.Errorf("unsupported version %q", m.Version)
	}
	if m.ChainID <= 0 {
		return fmt.Errorf("invalid chain id %d", m.ChainID)
	}
	if m.Nonce == "" {
		return errors.New("nonce is required")
	}
	if m.IssuedAt == "" {
		return errors.New("issuedAt is required")
	}
	if _, err := parseTimestamp(m.IssuedAt); err != nil {
		return fmt.Errorf("issuedAt: %w", err)
	}
	if m.ExpirationTime != "" {
		if _, err := parseTimestamp(m.ExpirationTime); err != nil {
			return fmt.Errorf("expirationTime: %w", err)
		}
	}
	if m.NotBefore != "" {
		if _, err := parseTimestamp(m.NotBefore); err != nil {
			return fmt.Errorf("notBefore: %w", err)
		}
	}
	return nil
}

// IssuedAtTime returns the parsed issuance timestamp.
func (m *Message) IssuedAtTime() (time.Time, error) {
	return parseTimestamp(m.IssuedAt)
}

// ExpirationTimeTime returns the parsed expiration timestamp. The zero
// time is returned when the field is absent.
func (m *Message) ExpirationTimeTime() (time.Time, error) {
	if m.ExpirationTime == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(m.ExpirationTime)
}

// NotBeforeTime returns the parsed not-before timestamp. The zero time
// is returned when the field is absent.
func (m *Message) NotBeforeTime() (time.Time, error) {
	if m.NotBefore == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(m.NotBefore)
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not RFC 3339", value)
	}
	return ts, nil
}
