package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"

	"github.com/gatewarden/gatewarden/core"
)

// ChainCaller executes read-only contract calls against a chain data
// provider. *ethclient.Client satisfies it directly.
type ChainCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ENSResolver looks up the best-effort ENS profile for an address. A
// missing record is not an error: the profile comes back empty.
type ENSResolver interface {
	Resolve(ctx context.Context, address string) (*core.ENSProfile, error)
}
