package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Namehash computes the EIP-137 node for an ENS name. The empty name
// hashes to the zero node.
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}

	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash.Bytes())
	}

	return node
}

// ReverseNode computes the node of the addr.reverse record used for
// reverse resolution of an address.
func ReverseNode(addr common.Address) common.Hash {
	name := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse"
	return Namehash(name)
}
