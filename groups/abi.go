package groups

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// Minimal ABI fragments covering only the balanceOf views the owner
// managers read. ERC-20 and ERC-721 share the same signature.
var (
	erc20ABI = mustParseABI(`[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"}]`)

	erc1155ABI = mustParseABI(`[{"constant":true,"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// balanceOf reads the ERC-20 or ERC-721 balance of owner on contract
func balanceOf(ctx context.Context, caller ports.ChainCaller, contract, owner common.Address) (*big.Int, error) {
	return readBalance(ctx, caller, erc20ABI, contract, owner)
}

// tokenBalanceOf reads the ERC-1155 balance of owner for one token id
func tokenBalanceOf(ctx context.Context, caller ports.ChainCaller, contract, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return readBalance(ctx, caller, erc1155ABI, contract, owner, tokenID)
}

func readBalance(ctx context.Context, caller ports.ChainCaller, contractABI abi.ABI, contract common.Address, args ...interface{}) (*big.Int, error) {
	data, err := contractABI.Pack("balanceOf", args...)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, errors.Join(core.ErrChainUnavailable, err)
	}

	results, err := contractABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf result count %d", len(results))
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}

	return balance, nil
}
