package groups

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// ERC20OwnerManager grants membership to wallets holding a minimum
// balance of an ERC-20 token
type ERC20OwnerManager struct {
	contract common.Address
	minimum  *big.Int
}

// NewERC20OwnerManager builds a manager for the token contract. A nil
// minimum means any positive balance qualifies.
func NewERC20OwnerManager(contract common.Address, minimum *big.Int) *ERC20OwnerManager {
	return &ERC20OwnerManager{contract: contract, minimum: defaultMinimum(minimum)}
}

func (m *ERC20OwnerManager) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ChainCaller) (bool, error) {
	balance, err := balanceOf(ctx, caller, m.contract, common.HexToAddress(wallet.Address))
	if err != nil {
		return false, err
	}
	return balance.Cmp(m.minimum) >= 0, nil
}

// ERC721OwnerManager grants membership to wallets owning tokens from an
// ERC-721 collection
type ERC721OwnerManager struct {
	contract common.Address
	minimum  *big.Int
}

// NewERC721OwnerManager builds a manager for the collection contract. A
// nil minimum means owning a single token qualifies.
func NewERC721OwnerManager(contract common.Address, minimum *big.Int) *ERC721OwnerManager {
	return &ERC721OwnerManager{contract: contract, minimum: defaultMinimum(minimum)}
}

func (m *ERC721OwnerManager) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ChainCaller) (bool, error) {
	balance, err := balanceOf(ctx, caller, m.contract, common.HexToAddress(wallet.Address))
	if err != nil {
		return false, err
	}
	return balance.Cmp(m.minimum) >= 0, nil
}

// ERC1155OwnerManager grants membership to wallets holding a minimum
// balance of one ERC-1155 token id
type ERC1155OwnerManager struct {
	contract common.Address
	tokenID  *big.Int
	minimum  *big.Int
}

// NewERC1155OwnerManager builds a manager for one token id of the
// contract. A nil minimum means any positive balance qualifies.
func NewERC1155OwnerManager(contract common.Address, tokenID, minimum *big.Int) *ERC1155OwnerManager {
	return &ERC1155OwnerManager{contract: contract, tokenID: tokenID, minimum: defaultMinimum(minimum)}
}

func (m *ERC1155OwnerManager) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ChainCaller) (bool, error) {
	balance, err := tokenBalanceOf(ctx, caller, m.contract, common.HexToAddress(wallet.Address), m.tokenID)
	if err != nil {
		return false, err
	}
	return balance.Cmp(m.minimum) >= 0, nil
}

func defaultMinimum(minimum *big.Int) *big.Int {
	if minimum == nil {
		return big.NewInt(1)
	}
	return minimum
}
