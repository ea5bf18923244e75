// Package chain adapts on-chain reads behind the service's ports. The
// ENS resolver walks the registry with minimal hand-rolled ABI
// fragments rather than pulling in generated bindings.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/internal/eth"
	"github.com/gatewarden/gatewarden/ports"
)

// RegistryAddress is the ENS registry deployment shared by mainnet and
// the major testnets.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var (
	registryABI = mustParseABI(`[{"name":"resolver","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`)

	resolverABI = mustParseABI(`[
		{"name":"name","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"name":"addr","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
		{"name":"text","inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
	]`)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ENSResolver resolves reverse records through the on-chain registry
type ENSResolver struct {
	caller   ports.ChainCaller
	registry common.Address
}

// NewENSResolver creates a resolver reading through caller against the
// canonical registry
func NewENSResolver(caller ports.ChainCaller) ports.ENSResolver {
	return &ENSResolver{caller: caller, registry: RegistryAddress}
}

// Resolve looks up the reverse record for address and, when one
// exists, the avatar text record of the resolved name. A name whose
// forward record no longer points back at the address is discarded.
func (r *ENSResolver) Resolve(ctx context.Context, address string) (*core.ENSProfile, error) {
	addr := common.HexToAddress(address)

	reverseNode := eth.ReverseNode(addr)
	reverseResolver, err := r.resolverFor(ctx, reverseNode)
	if err != nil {
		return nil, err
	}
	if reverseResolver == (common.Address{}) {
		return &core.ENSProfile{}, nil
	}

	name, err := r.lookupName(ctx, reverseResolver, reverseNode)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return &core.ENSProfile{}, nil
	}

	node := eth.Namehash(name)
	forwardResolver, err := r.resolverFor(ctx, node)
	if err != nil {
		return nil, err
	}
	if forwardResolver == (common.Address{}) {
		return &core.ENSProfile{}, nil
	}

	forward, err := r.lookupAddr(ctx, forwardResolver, node)
	if err != nil {
		return nil, err
	}
	if forward != addr {
		return &core.ENSProfile{}, nil
	}

	// The avatar record is optional; a failed read degrades to a
	// name-only profile
	avatar, err := r.lookupText(ctx, forwardResolver, node, "avatar")
	if err != nil {
		avatar = ""
	}

	return &core.ENSProfile{Name: name, Avatar: avatar}, nil
}

func (r *ENSResolver) resolverFor(ctx context.Context, node common.Hash) (common.Address, error) {
	results, err := r.call(ctx, r.registry, registryABI, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	resolver, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected resolver result type %T", results[0])
	}
	return resolver, nil
}

func (r *ENSResolver) lookupName(ctx context.Context, resolver common.Address, node common.Hash) (string, error) {
	results, err := r.call(ctx, resolver, resolverABI, "name", node)
	if err != nil {
		return "", err
	}
	name, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected name result type %T", results[0])
	}
	return name, nil
}

func (r *ENSResolver) lookupAddr(ctx context.Context, resolver common.Address, node common.Hash) (common.Address, error) {
	results, err := r.call(ctx, resolver, resolverABI, "addr", node)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected addr result type %T", results[0])
	}
	return addr, nil
}

func (r *ENSResolver) lookupText(ctx context.Context, resolver common.Address, node common.Hash, key string) (string, error) {
	results, err := r.call(ctx, resolver, resolverABI, "text", node, key)
	if err != nil {
		return "", err
	}
	text, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected text result type %T", results[0])
	}
	return text, nil
}

func (r *ENSResolver) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Join(core.ErrChainUnavailable, err)
	}

	results, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("unexpected %s result count %d", method, len(results))
	}

	return results, nil
}
