// Package groups recomputes capability-group memberships from on-chain
// state. Each group is backed by a pluggable strategy answering a
// single question: does this wallet belong right now?
package groups

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// Manager decides whether a wallet belongs to a capability group based
// on chain state
type Manager interface {
	IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ChainCaller) (bool, error)
}

// Membership pairs a group name with the manager that decides it
type Membership struct {
	Name    string
	Manager Manager
}

// TokenAmount converts a human-unit amount into a raw balance for a
// token with the given decimals, e.g. TokenAmount("2.5", 18) for a
// minimum of two and a half tokens.
func TokenAmount(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}

	return d.Shift(decimals).BigInt(), nil
}
