package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// RedisWalletRepository is a Redis implementation of the
// WalletRepository interface
type RedisWalletRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisWalletRepository creates a new Redis wallet repository
func NewRedisWalletRepository(client *redis.Client) ports.WalletRepository {
	return &RedisWalletRepository{
		client: client,
		prefix: "gatewarden:wallet:",
	}
}

// GetOrCreate returns the wallet for address, creating it on first use.
// SETNX decides the race; the loser reads the winner's record.
func (r *RedisWalletRepository) GetOrCreate(ctx context.Context, address string) (*core.Wallet, bool, error) {
	wallet := core.Wallet{
		Address:   address,
		CreatedAt: time.Now(),
		IsActive:  true,
	}

	payload, err := json.Marshal(wallet)
	if err != nil {
		return nil, false, fmt.Errorf("encode wallet: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.prefix+address, payload, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("create wallet: %w", err)
	}
	if created {
		return &wallet, true, nil
	}

	existing, err := r.Get(ctx, address)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

// Get returns the wallet for address
func (r *RedisWalletRepository) Get(ctx context.Context, address string) (*core.Wallet, error) {
	payload, err := r.client.Get(ctx, r.prefix+address).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrWalletNotFound
		}
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	var wallet core.Wallet
	if err := json.Unmarshal(payload, &wallet); err != nil {
		return nil, fmt.Errorf("decode wallet: %w", err)
	}

	return &wallet, nil
}

// Update replaces the stored wallet record
func (r *RedisWalletRepository) Update(ctx context.Context, wallet *core.Wallet) error {
	payload, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}

	stored, err := r.client.SetXX(ctx, r.prefix+wallet.Address, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if !stored {
		return core.ErrWalletNotFound
	}

	return nil
}

// RedisGroupRepository is a Redis implementation of the GroupRepository
// interface. Memberships live in two sets, by group and by wallet, so
// both directions read in one command.
type RedisGroupRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisGroupRepository creates a new Redis group repository
func NewRedisGroupRepository(client *redis.Client) ports.GroupRepository {
	return &RedisGroupRepository{
		client: client,
		prefix: "gatewarden:",
	}
}

// EnsureGroup records the group name in the registry set
func (r *RedisGroupRepository) EnsureGroup(ctx context.Context, name string) error {
	if err := r.client.SAdd(ctx, r.registryKey(), name).Err(); err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}

	return nil
}

// AddMember adds address to the group
func (r *RedisGroupRepository) AddMember(ctx context.Context, group, address string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.registryKey(), group)
	pipe.SAdd(ctx, r.groupKey(group), address)
	pipe.SAdd(ctx, r.walletKey(address), group)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	return nil
}

// RemoveMember removes address from the group; absent members are a
// no-op
func (r *RedisGroupRepository) RemoveMember(ctx context.Context, group, address string) error {
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.groupKey(group), address)
	pipe.SRem(ctx, r.walletKey(address), group)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	return nil
}

// IsMember reports whether address belongs to the group
func (r *RedisGroupRepository) IsMember(ctx context.Context, group, address string) (bool, error) {
	member, err := r.client.SIsMember(ctx, r.groupKey(group), address).Result()
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}

	return member, nil
}

// GroupsOf returns the sorted group names address belongs to
func (r *RedisGroupRepository) GroupsOf(ctx context.Context, address string) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.walletKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil
	}

	return names, nil
}

func (r *RedisGroupRepository) registryKey() string {
	return r.prefix + "groups"
}

func (r *RedisGroupRepository) groupKey(name string) string {
	return r.prefix + "group:" + name
}

func (r *RedisGroupRepository) walletKey(address string) string {
	return r.prefix + "wallet:" + address + ":groups"
}
