package ports

import (
	"context"

	"github.com/gatewarden/gatewarden/core"
)

// WalletRepository persists wallet identities keyed by address
type WalletRepository interface {
	// GetOrCreate returns the wallet for address, creating it on first
	// login. The second return reports whether a record was created.
	GetOrCreate(ctx context.Context, address string) (*core.Wallet, bool, error)

	// Get returns the wallet or core.ErrWalletNotFound.
	Get(ctx context.Context, address string) (*core.Wallet, error)

	// Update replaces the stored wallet record.
	Update(ctx context.Context, wallet *core.Wallet) error
}

// GroupRepository persists capability groups and their memberships
type GroupRepository interface {
	// EnsureGroup creates the group if it does not exist yet.
	EnsureGroup(ctx context.Context, name string) error

	AddMember(ctx context.Context, group, address string) error
	RemoveMember(ctx context.Context, group, address string) error
	IsMember(ctx context.Context, group, address string) (bool, error)

	// GroupsOf returns the sorted group names address belongs to.
	GroupsOf(ctx context.Context, address string) ([]string, error)
}
