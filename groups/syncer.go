package groups

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

// DefaultCallTimeout bounds a single strategy's chain read.
const DefaultCallTimeout = 5 * time.Second

// Result reports the outcome of one group's sync
type Result struct {
	Group  string
	Member bool
	Err    error
}

// Syncer recomputes a wallet's strategy-backed group memberships. It
// runs on successful authentication only; membership may go stale
// between logins.
type Syncer struct {
	memberships []Membership
	groups      ports.GroupRepository
	caller      ports.ChainCaller
	timeout     time.Duration
	logger      *slog.Logger
}

// NewSyncer creates a syncer over the configured memberships
func NewSyncer(memberships []Membership, groups ports.GroupRepository, caller ports.ChainCaller, timeout time.Duration, logger *slog.Logger) *Syncer {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		memberships: memberships,
		groups:      groups,
		caller:      caller,
		timeout:     timeout,
		logger:      logger,
	}
}

// Sync evaluates every strategy for the wallet in parallel. The
// strategies are independent read-only chain calls, so a failing or
// slow one leaves that group's membership unchanged and never blocks
// the others.
func (s *Syncer) Sync(ctx context.Context, wallet *core.Wallet) []Result {
	results := make([]Result, len(s.memberships))

	var wg sync.WaitGroup
	for i, membership := range s.memberships {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.syncOne(ctx, wallet, membership)
		}()
	}
	wg.Wait()

	return results
}

func (s *Syncer) syncOne(ctx context.Context, wallet *core.Wallet, membership Membership) Result {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	member, err := membership.Manager.IsMember(callCtx, wallet, s.caller)
	if err != nil {
		s.logger.Warn("membership check failed, leaving group unchanged",
			"group", membership.Name, "address", wallet.Address, "error", err)
		return Result{Group: membership.Name, Err: err}
	}

	if err := s.apply(ctx, wallet.Address, membership.Name, member); err != nil {
		s.logger.Warn("membership update failed",
			"group", membership.Name, "address", wallet.Address, "error", err)
		return Result{Group: membership.Name, Member: member, Err: err}
	}

	return Result{Group: membership.Name, Member: member}
}

// apply moves the stored membership to the computed state, removing as
// eagerly as it adds
func (s *Syncer) apply(ctx context.Context, address, group string, member bool) error {
	if err := s.groups.EnsureGroup(ctx, group); err != nil {
		return err
	}
	if member {
		return s.groups.AddMember(ctx, group, address)
	}
	return s.groups.RemoveMember(ctx, group, address)
}
