package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// MemoryWalletRepository is an in-memory implementation of the
// WalletRepository interface
type MemoryWalletRepository struct {
	mu      sync.Mutex
	wallets map[string]core.Wallet
}

// NewMemoryWalletRepository creates a new in-memory wallet repository
func NewMemoryWalletRepository() ports.WalletRepository {
	return &MemoryWalletRepository{
		wallets: make(map[string]core.Wallet),
	}
}

// GetOrCreate returns the wallet for address, creating it on first use
func (r *MemoryWalletRepository) GetOrCreate(ctx context.Context, address string) (*core.Wallet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wallet, ok := r.wallets[address]; ok {
		return &wallet, false, nil
	}

	wallet := core.Wallet{
		Address:   address,
		CreatedAt: time.Now(),
		IsActive:  true,
	}
	r.wallets[address] = wallet

	return &wallet, true, nil
}

// Get returns the wallet for address
func (r *MemoryWalletRepository) Get(ctx context.Context, address string) (*core.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wallet, ok := r.wallets[address]
	if !ok {
		return nil, core.ErrWalletNotFound
	}

	return &wallet, nil
}

// Update replaces the stored wallet record
func (r *MemoryWalletRepository) Update(ctx context.Context, wallet *core.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[wallet.Address]; !ok {
		return core.ErrWalletNotFound
	}

	r.wallets[wallet.Address] = *wallet

	return nil
}

// MemoryGroupRepository is an in-memory implementation of the
// GroupRepository interface
type MemoryGroupRepository struct {
	mu     sync.Mutex
	groups map[string]map[string]struct{}
}

// NewMemoryGroupRepository creates a new in-memory group repository
func NewMemoryGroupRepository() ports.GroupRepository {
	return &MemoryGroupRepository{
		groups: make(map[string]map[string]struct{}),
	}
}

// EnsureGroup creates the group if it does not exist yet
func (r *MemoryGroupRepository) EnsureGroup(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLocked(name)

	return nil
}

// AddMember adds address to the group, creating the group if needed
func (r *MemoryGroupRepository) AddMember(ctx context.Context, group, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLocked(group)[address] = struct{}{}

	return nil
}

// RemoveMember removes address from the group; absent members are a
// no-op
func (r *MemoryGroupRepository) RemoveMember(ctx context.Context, group, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.groups[group]; ok {
		delete(members, address)
	}

	return nil
}

// IsMember reports whether address belongs to the group
func (r *MemoryGroupRepository) IsMember(ctx context.Context, group, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return false, nil
	}
	_, member := members[address]

	return member, nil
}

// GroupsOf returns the sorted group names address belongs to
func (r *MemoryGroupRepository) GroupsOf(ctx context.Context, address string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for name, members := range r.groups {
		if _, ok := members[address]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

func (r *MemoryGroupRepository) ensureLocked(name string) map[string]struct{} {
	members, ok := r.groups[name]
	if !ok {
		members = make(map[string]struct{})
		r.groups[name] = members
	}
	return members
}
