package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const headerSuffix = " wants you to sign in with your Ethereum account:"

// Parse reads a message from its canonical EIP-4361 text layout. The
// grammar is positional: header, address, optional statement, then the
// field lines in their fixed order.
func Parse(raw string) (*Message, error) {
	lines := strings.Split(raw, "\n")
	if len(lines) < 9 {
		return nil, errors.New("message too short")
	}

	domain, ok := strings.CutSuffix(lines[0], headerSuffix)
	if !ok || domain == "" {
		return nil, fmt.Errorf("malformed header line %q", lines[0])
	}

	msg := &Message{Domain: domain, Address: lines[1]}

	if lines[2] != "" {
		return nil, errors.New("expected blank line after address")
	}

	i := 3
	if lines[i] != "" {
		msg.Statement = lines[i]
		i++
	}
	if i >= len(lines) || lines[i] != "" {
		return nil, errors.New("expected blank line before fields")
	}
	i++

	var err error
	if msg.URI, err = requiredField(lines, &i, "URI: "); err != nil {
		return nil, err
	}
	if msg.Version, err = requiredField(lines, &i, "Version: "); err != nil {
		return nil, err
	}
	chainID, err := requiredField(lines, &i, "Chain ID: ")
	if err != nil {
		return nil, err
	}
	if msg.ChainID, err = strconv.Atoi(chainID); err != nil {
		return nil, fmt.Errorf("chain id %q is not a number", chainID)
	}
	if msg.Nonce, err = requiredField(lines, &i, "Nonce: "); err != nil {
		return nil, err
	}
	if msg.IssuedAt, err = requiredField(lines, &i, "Issued At: "); err != nil {
		return nil, err
	}

	msg.ExpirationTime = optionalField(lines, &i, "Expiration Time: ")
	msg.NotBefore = optionalField(lines, &i, "Not Before: ")
	msg.RequestID = optionalField(lines, &i, "Request ID: ")

	if i < len(lines) && lines[i] == "Resources:" {
		i++
		for ; i < len(lines); i++ {
			resource, ok := strings.CutPrefix(lines[i], "- ")
			if !ok {
				return nil, fmt.Errorf("malformed resource line %q", lines[i])
			}
			msg.Resources = append(msg.Resources, resource)
		}
	}

	if i < len(lines) {
		return nil, fmt.Errorf("unexpected line %q", lines[i])
	}

	return msg, nil
}

func requiredField(lines []string, i *int, prefix string) (string, error) {
	name := strings.TrimSuffix(prefix, ": ")
	if *i >= len(lines) {
		return "", fmt.Errorf("missing %q field", name)
	}
	value, ok := strings.CutPrefix(lines[*i], prefix)
	if !ok {
		return "", fmt.Errorf("expected %q field, got %q", name, lines[*i])
	}
	*i++
	return value, nil
}

func optionalField(lines []string, i *int, prefix string) string {
	if *i >= len(lines) {
		return ""
	}
	value, ok := strings.CutPrefix(lines[*i], prefix)
	if !ok {
		return ""
	}
	*i++
	return value
}
