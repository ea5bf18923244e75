package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/groups"
	"github.com/gatewarden/gatewarden/internal/siwe"
	"github.com/gatewarden/gatewarden/ports"
)

// DefaultSessionTTL is how long a session lives without a refresh.
const DefaultSessionTTL = 3 * time.Hour

// AuthServiceConfig collects the collaborators and policy knobs an
// AuthService composes
type AuthServiceConfig struct {
	Verifier  *Verifier
	Nonces    ports.NonceStore
	Sessions  ports.SessionStore
	Wallets   ports.WalletRepository
	Groups    ports.GroupRepository
	Tokenizer ports.SessionTokenizer
	Syncer    *groups.Syncer       // nil disables group sync
	Resolver  ports.ENSResolver    // nil disables ENS enrichment
	Events    ports.EventPublisher // nil disables event publishing
	Logger    *slog.Logger

	SessionTTL time.Duration

	// MaxLifetime caps how far refreshes can extend a session past its
	// creation; zero lets refreshes extend indefinitely.
	MaxLifetime time.Duration

	ChainTimeout time.Duration
}

// AuthService composes nonce issuance, message verification, session
// lifecycle and group synchronization into the authentication flow
type AuthService struct {
	verifier  *Verifier
	nonces    ports.NonceStore
	sessions  ports.SessionStore
	wallets   ports.WalletRepository
	groupRepo ports.GroupRepository
	tokenizer ports.SessionTokenizer
	syncer    *groups.Syncer
	resolver  ports.ENSResolver
	events    ports.EventPublisher
	logger    *slog.Logger

	sessionTTL   time.Duration
	maxLifetime  time.Duration
	chainTimeout time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = groups.DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &AuthService{
		verifier:     cfg.Verifier,
		nonces:       cfg.Nonces,
		sessions:     cfg.Sessions,
		wallets:      cfg.Wallets,
		groupRepo:    cfg.Groups,
		tokenizer:    cfg.Tokenizer,
		syncer:       cfg.Syncer,
		resolver:     cfg.Resolver,
		events:       cfg.Events,
		logger:       cfg.Logger,
		sessionTTL:   cfg.SessionTTL,
		maxLifetime:  cfg.MaxLifetime,
		chainTimeout: cfg.ChainTimeout,
	}
}

// Nonce issues a fresh single-use login nonce
func (s *AuthService) Nonce(ctx context.Context) (*core.Nonce, error) {
	nonce, err := s.nonces.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue nonce: %w", err)
	}

	return nonce, nil
}

// Login verifies a signed message and establishes a session for the
// recovered wallet. The returned token is the session's cookie value.
// ENS enrichment and group sync are best-effort: their failures are
// logged and never block the login.
func (s *AuthService) Login(ctx context.Context, msg *siwe.Message, signature string) (*core.Session, string, error) {
	identity, err := s.verifier.Verify(ctx, msg, signature)
	if err != nil {
		return nil, "", err
	}

	wallet, created, err := s.wallets.GetOrCreate(ctx, identity.Address)
	if err != nil {
		return nil, "", fmt.Errorf("load wallet: %w", err)
	}
	if !wallet.IsActive {
		return nil, "", core.ErrWalletDisabled
	}

	wallet.LastAuthAt = time.Now()
	if s.resolver != nil {
		s.enrichENS(ctx, wallet)
	}
	if err := s.wallets.Update(ctx, wallet); err != nil {
		return nil, "", fmt.Errorf("update wallet: %w", err)
	}

	if s.syncer != nil {
		s.syncer.Sync(ctx, wallet)
	}

	now := time.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   wallet.Address,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("save session: %w", err)
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("encode session token: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishLogin(ctx, session.Address, session.ID); err != nil {
			s.logger.Warn("login event publish failed", "error", err)
		}
	}

	s.logger.Info("wallet authenticated",
		"address", wallet.Address, "created", created, "chain_id", identity.ChainID)

	return session, token, nil
}

// Refresh rotates the session behind token: fresh identifier, extended
// expiry, old identifier invalidated in the same step
func (s *AuthService) Refresh(ctx context.Context, token string) (*core.Session, string, error) {
	current, err := s.resolveSession(ctx, token)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	expiresAt := now.Add(s.sessionTTL)
	if s.maxLifetime > 0 {
		ceiling := current.CreatedAt.Add(s.maxLifetime)
		if !now.Before(ceiling) {
			return nil, "", core.ErrSessionExpired
		}
		if expiresAt.After(ceiling) {
			expiresAt = ceiling
		}
	}

	next := &core.Session{
		ID:           uuid.New().String(),
		Address:      current.Address,
		CreatedAt:    current.CreatedAt,
		ExpiresAt:    expiresAt,
		RefreshCount: current.RefreshCount + 1,
	}

	if err := s.sessions.Rotate(ctx, current.ID, next); err != nil {
		return nil, "", fmt.Errorf("rotate session: %w", err)
	}

	newToken, err := s.tokenizer.SessionToToken(next)
	if err != nil {
		return nil, "", fmt.Errorf("encode session token: %w", err)
	}

	return next, newToken, nil
}

// Verify is a read-only probe resolving token to its live session
func (s *AuthService) Verify(ctx context.Context, token string) (*core.Session, error) {
	return s.resolveSession(ctx, token)
}

// Logout destroys the session behind token. Unknown, expired and
// malformed tokens all count as already logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishLogout(ctx, claims.Address, claims.ID); err != nil {
			s.logger.Warn("logout event publish failed", "error", err)
		}
	}

	s.logger.Info("wallet logged out", "address", claims.Address)

	return nil
}

// Wallet returns the stored wallet record and its group names
func (s *AuthService) Wallet(ctx context.Context, address string) (*core.Wallet, []string, error) {
	wallet, err := s.wallets.Get(ctx, address)
	if err != nil {
		return nil, nil, err
	}

	names, err := s.groupRepo.GroupsOf(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("load groups: %w", err)
	}

	return wallet, names, nil
}

// resolveSession maps token to its live session record. The store
// record is authoritative; the token only names it.
func (s *AuthService) resolveSession(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrSessionNotFound
	}

	claims, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		if errors.Is(err, core.ErrSessionExpired) {
			return nil, core.ErrSessionExpired
		}
		return nil, errors.Join(core.ErrSessionNotFound, err)
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(session.Address, claims.Address) {
		return nil, core.ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, core.ErrSessionExpired
	}

	return session, nil
}

// enrichENS refreshes the wallet's ENS fields from the resolver,
// overwriting stale values; failures only log
func (s *AuthService) enrichENS(ctx context.Context, wallet *core.Wallet) {
	callCtx, cancel := context.WithTimeout(ctx, s.chainTimeout)
	defer cancel()

	profile, err := s.resolver.Resolve(callCtx, wallet.Address)
	if err != nil {
		s.logger.Warn("ens lookup failed", "address", wallet.Address, "error", err)
		return
	}

	wallet.ENSName = profile.Name
	wallet.ENSAvatar = profile.Avatar
}
