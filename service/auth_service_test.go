package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/adapters/repo"
	"github.com/gatewarden/gatewarden/adapters/store"
	"github.com/gatewarden/gatewarden/adapters/tokenizer"
	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/groups"
	"github.com/gatewarden/gatewarden/ports"
)

type fixtures struct {
	nonces    ports.NonceStore
	sessions  ports.SessionStore
	wallets   ports.WalletRepository
	groupRepo ports.GroupRepository
	tokenizer ports.SessionTokenizer
	events    *capturingPublisher
}

type capturingPublisher struct {
	mu      sync.Mutex
	logins  []string
	logouts []string
}

func (p *capturingPublisher) PublishLogin(ctx context.Context, address, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, address)
	return nil
}

func (p *capturingPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, address)
	return nil
}

type stubResolver struct {
	profile *core.ENSProfile
	err     error
}

func (r *stubResolver) Resolve(ctx context.Context, address string) (*core.ENSProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.profile, nil
}

// fakeBalanceCaller answers every eth_call with one uint256 balance
type fakeBalanceCaller struct {
	balance int64
	err     error
}

func (c *fakeBalanceCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return common.LeftPadBytes(big.NewInt(c.balance).Bytes(), 32), nil
}

func newTestService(t *testing.T, mutate func(*AuthServiceConfig, *fixtures)) (*AuthService, *fixtures) {
	t.Helper()

	f := &fixtures{
		nonces:    store.NewMemoryNonceStore(time.Minute),
		sessions:  store.NewMemorySessionStore(),
		wallets:   repo.NewMemoryWalletRepository(),
		groupRepo: repo.NewMemoryGroupRepository(),
		events:    &capturingPublisher{},
	}

	signKey, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)
	f.tokenizer = tokenizer.NewJWTTokenizer(signKey)

	cfg := AuthServiceConfig{
		Verifier:   newTestVerifier(f.nonces),
		Nonces:     f.nonces,
		Sessions:   f.sessions,
		Wallets:    f.wallets,
		Groups:     f.groupRepo,
		Tokenizer:  f.tokenizer,
		Events:     f.events,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionTTL: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg, f)
	}

	return NewAuthService(cfg), f
}

func walletAddress(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func doLogin(t *testing.T, svc *AuthService, f *fixtures, key *ecdsa.PrivateKey) (*core.Session, string) {
	t.Helper()

	msg := loginMessage(key, issueNonce(t, f.nonces))
	session, token, err := svc.Login(context.Background(), msg, signLogin(t, key, msg))
	require.NoError(t, err)
	return session, token
}

func TestLoginEstablishesSession(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	msg := loginMessage(key, issueNonce(t, f.nonces))
	session, token, err := svc.Login(ctx, msg, signLogin(t, key, msg))
	require.NoError(t, err)

	assert.Equal(t, walletAddress(key), session.Address)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.ExpiresAt.After(time.Now()))
	assert.Zero(t, session.RefreshCount)

	// The cookie token resolves back to the live session.
	resolved, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resolved.ID)

	wallet, err := f.wallets.Get(ctx, session.Address)
	require.NoError(t, err)
	assert.True(t, wallet.IsActive)
	assert.WithinDuration(t, time.Now(), wallet.LastAuthAt, time.Minute)

	assert.Equal(t, []string{session.Address}, f.events.logins)
}

func TestLoginSecondVisitKeepsWallet(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	first, _ := doLogin(t, svc, f, key)
	second, _ := doLogin(t, svc, f, key)

	assert.NotEqual(t, first.ID, second.ID)

	wallet, err := f.wallets.Get(ctx, walletAddress(key))
	require.NoError(t, err)
	assert.Equal(t, walletAddress(key), wallet.Address)
}

func TestLoginDisabledWallet(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	wallet, _, err := f.wallets.GetOrCreate(ctx, walletAddress(key))
	require.NoError(t, err)
	wallet.IsActive = false
	require.NoError(t, f.wallets.Update(ctx, wallet))

	msg := loginMessage(key, issueNonce(t, f.nonces))
	_, _, err = svc.Login(ctx, msg, signLogin(t, key, msg))
	assert.ErrorIs(t, err, core.ErrWalletDisabled)
	assert.Empty(t, f.events.logins)
}

func TestLoginBadSignature(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	msg := loginMessage(key, issueNonce(t, f.nonces))
	_, _, err := svc.Login(ctx, msg, signLogin(t, newWalletKey(t), msg))
	assert.ErrorIs(t, err, core.ErrSignatureMismatch)
}

func TestLoginSyncsGroups(t *testing.T) {
	ctx := context.Background()
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")

	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		memberships := []groups.Membership{
			{Name: "holders", Manager: groups.NewERC20OwnerManager(contract, nil)},
		}
		cfg.Syncer = groups.NewSyncer(memberships, f.groupRepo, &fakeBalanceCaller{balance: 5}, time.Second, cfg.Logger)
	})
	key := newWalletKey(t)

	session, _ := doLogin(t, svc, f, key)

	member, err := f.groupRepo.IsMember(ctx, "holders", session.Address)
	require.NoError(t, err)
	assert.True(t, member)

	_, names, err := svc.Wallet(ctx, session.Address)
	require.NoError(t, err)
	assert.Equal(t, []string{"holders"}, names)
}

func TestLoginRemovesStaleGroups(t *testing.T) {
	ctx := context.Background()
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	key := newWalletKey(t)

	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		memberships := []groups.Membership{
			{Name: "holders", Manager: groups.NewERC20OwnerManager(contract, nil)},
		}
		cfg.Syncer = groups.NewSyncer(memberships, f.groupRepo, &fakeBalanceCaller{balance: 0}, time.Second, cfg.Logger)
	})
	require.NoError(t, f.groupRepo.AddMember(ctx, "holders", walletAddress(key)))

	doLogin(t, svc, f, key)

	member, err := f.groupRepo.IsMember(ctx, "holders", walletAddress(key))
	require.NoError(t, err)
	assert.False(t, member)
}

func TestLoginSucceedsWhenChainDown(t *testing.T) {
	ctx := context.Background()
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	key := newWalletKey(t)

	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		memberships := []groups.Membership{
			{Name: "holders", Manager: groups.NewERC20OwnerManager(contract, nil)},
		}
		cfg.Syncer = groups.NewSyncer(memberships, f.groupRepo, &fakeBalanceCaller{err: errors.New("connection refused")}, time.Second, cfg.Logger)
	})
	require.NoError(t, f.groupRepo.AddMember(ctx, "holders", walletAddress(key)))

	session, _ := doLogin(t, svc, f, key)
	require.NotNil(t, session)

	// The unreachable strategy left the stored membership alone.
	member, err := f.groupRepo.IsMember(ctx, "holders", walletAddress(key))
	require.NoError(t, err)
	assert.True(t, member)
}

func TestLoginENSEnrichment(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		cfg.Resolver = &stubResolver{profile: &core.ENSProfile{Name: "vitalik.eth", Avatar: "https://example.com/a.png"}}
	})
	key := newWalletKey(t)

	session, _ := doLogin(t, svc, f, key)

	wallet, err := f.wallets.Get(ctx, session.Address)
	require.NoError(t, err)
	assert.Equal(t, "vitalik.eth", wallet.ENSName)
	assert.Equal(t, "https://example.com/a.png", wallet.ENSAvatar)
}

func TestLoginENSFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		cfg.Resolver = &stubResolver{err: errors.Join(core.ErrChainUnavailable, errors.New("rpc timeout"))}
	})
	key := newWalletKey(t)

	session, _ := doLogin(t, svc, f, key)

	wallet, err := f.wallets.Get(ctx, session.Address)
	require.NoError(t, err)
	assert.Empty(t, wallet.ENSName)
}

func TestRefreshRotatesSession(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	session, token := doLogin(t, svc, f, key)

	next, nextToken, err := svc.Refresh(ctx, token)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, next.ID)
	assert.Equal(t, session.Address, next.Address)
	assert.Equal(t, 1, next.RefreshCount)
	assert.True(t, session.CreatedAt.Equal(next.CreatedAt))
	assert.False(t, next.ExpiresAt.Before(session.ExpiresAt))

	// The old session is gone, only the rotated one resolves.
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	resolved, err := svc.Verify(ctx, nextToken)
	require.NoError(t, err)
	assert.Equal(t, next.ID, resolved.ID)
}

func TestRefreshChain(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	_, token := doLogin(t, svc, f, key)

	for i := 1; i <= 3; i++ {
		next, nextToken, err := svc.Refresh(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, i, next.RefreshCount)
		token = nextToken
	}
}

func TestRefreshMaxLifetimeCapsExpiry(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		cfg.MaxLifetime = 30 * time.Minute
	})
	key := newWalletKey(t)

	session, token := doLogin(t, svc, f, key)

	next, _, err := svc.Refresh(ctx, token)
	require.NoError(t, err)
	assert.WithinDuration(t, session.CreatedAt.Add(30*time.Minute), next.ExpiresAt, time.Second)
}

func TestRefreshPastLifetimeCeiling(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, func(cfg *AuthServiceConfig, f *fixtures) {
		cfg.MaxLifetime = time.Hour
	})

	// An old session still within its own expiry but past the ceiling.
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   "0x9858effd232b4033e47d90003d41ec34ecaeda94",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, f.sessions.Save(ctx, session))
	token, err := f.tokenizer.SessionToToken(session)
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, token)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
}

func TestVerifyExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)

	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   "0x9858effd232b4033e47d90003d41ec34ecaeda94",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.sessions.Save(ctx, session))

	// Mint a non-expired token naming the expired record, so the
	// store's answer decides.
	tokenSession := *session
	tokenSession.ExpiresAt = time.Now().Add(time.Hour)
	token, err := f.tokenizer.SessionToToken(&tokenSession)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
}

func TestVerifyAddressCrosscheck(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	session, _ := doLogin(t, svc, f, key)

	// A token naming the right session but the wrong wallet does not
	// resolve.
	forged := *session
	forged.Address = "0x0000000000000000000000000000000000000001"
	token, err := f.tokenizer.SessionToToken(&forged)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestVerifyEmptyToken(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Verify(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	session, token := doLogin(t, svc, f, key)

	require.NoError(t, svc.Logout(ctx, token))

	_, err := svc.Verify(ctx, token)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Equal(t, []string{session.Address}, f.events.logouts)

	// Logging out again with the same token still succeeds.
	require.NoError(t, svc.Logout(ctx, token))
}

func TestLogoutGarbageToken(t *testing.T) {
	svc, f := newTestService(t, nil)

	require.NoError(t, svc.Logout(context.Background(), "not-a-token"))
	assert.Empty(t, f.events.logouts)
}

func TestWalletLookup(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, nil)
	key := newWalletKey(t)

	session, _ := doLogin(t, svc, f, key)
	require.NoError(t, f.groupRepo.AddMember(ctx, "holders", session.Address))

	wallet, names, err := svc.Wallet(ctx, session.Address)
	require.NoError(t, err)
	assert.Equal(t, session.Address, wallet.Address)
	assert.Equal(t, []string{"holders"}, names)
}

func TestWalletLookupMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, _, err := svc.Wallet(context.Background(), "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
}

func TestNonceIssuance(t *testing.T) {
	svc, _ := newTestService(t, nil)

	nonce, err := svc.Nonce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, nonce.Value)
	assert.True(t, nonce.ExpiresAt.After(nonce.IssuedAt))
}
