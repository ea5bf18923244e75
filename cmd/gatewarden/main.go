package main

import (
	"crypto/ecdsa"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/gatewarden/gatewarden/adapters/chain"
	"github.com/gatewarden/gatewarden/adapters/events"
	"github.com/gatewarden/gatewarden/adapters/repo"
	"github.com/gatewarden/gatewarden/adapters/store"
	"github.com/gatewarden/gatewarden/adapters/tokenizer"
	"github.com/gatewarden/gatewarden/config"
	"github.com/gatewarden/gatewarden/groups"
	"github.com/gatewarden/gatewarden/internal/logging"
	"github.com/gatewarden/gatewarden/ports"
	"github.com/gatewarden/gatewarden/service"
	"github.com/gatewarden/gatewarden/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	signKey, err := loadSigningKey(cfg)
	if err != nil {
		logger.Error("failed to load session signing key", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSigningKey == "" {
		logger.Warn("SESSION_SIGNING_KEY not set, sessions will not survive a restart")
	}

	client, err := ethclient.Dial(cfg.ProviderURL)
	if err != nil {
		logger.Error("failed to connect to chain provider", "url", cfg.ProviderURL, "error", err)
		os.Exit(1)
	}

	var (
		nonces    ports.NonceStore
		sessions  ports.SessionStore
		wallets   ports.WalletRepository
		groupRepo ports.GroupRepository
		publisher message.Publisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)

		nonces = store.NewRedisNonceStore(redisClient, cfg.NonceTTL)
		sessions = store.NewRedisSessionStore(redisClient)
		wallets = repo.NewRedisWalletRepository(redisClient)
		groupRepo = repo.NewRedisGroupRepository(redisClient)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Error("failed to create Redis publisher", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-process stores")
		nonces = store.NewMemoryNonceStore(cfg.NonceTTL)
		sessions = store.NewMemorySessionStore()
		wallets = repo.NewMemoryWalletRepository()
		groupRepo = repo.NewMemoryGroupRepository()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	}

	// Memberships come from deployment-specific wiring. For example:
	//
	//	memberships = append(memberships, groups.Membership{
	//		Name:    "usdc-holders",
	//		Manager: groups.NewERC20OwnerManager(common.HexToAddress("0x..."), big.NewInt(1)),
	//	})
	var memberships []groups.Membership

	var syncer *groups.Syncer
	if cfg.GroupSyncOnAuth && len(memberships) > 0 {
		syncer = groups.NewSyncer(memberships, groupRepo, client, cfg.ChainTimeout, logger)
	}

	var resolver ports.ENSResolver
	if cfg.ENSOnAuth {
		resolver = chain.NewENSResolver(client)
	}

	verifier := service.NewVerifier(cfg.Domain, cfg.URI, cfg.ClockSkew, nonces)

	authService := service.NewAuthService(service.AuthServiceConfig{
		Verifier:     verifier,
		Nonces:       nonces,
		Sessions:     sessions,
		Wallets:      wallets,
		Groups:       groupRepo,
		Tokenizer:    tokenizer.NewJWTTokenizer(signKey),
		Syncer:       syncer,
		Resolver:     resolver,
		Events:       events.NewWatermillPublisher(publisher),
		Logger:       logger,
		SessionTTL:   cfg.SessionTTL,
		MaxLifetime:  cfg.SessionMaxLifetime,
		ChainTimeout: cfg.ChainTimeout,
	})

	router := http.SetupRouter(authService, http.RouterConfig{
		CookieName:     cfg.CookieName,
		CookieSecure:   cfg.CookieSecure,
		CSRFExempt:     cfg.CSRFExempt,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	logger.Info("starting server", "addr", cfg.HTTPAddr, "domain", cfg.Domain)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadSigningKey(cfg config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.SessionSigningKey != "" {
		return tokenizer.ParseSigningKey([]byte(cfg.SessionSigningKey))
	}
	return tokenizer.GenerateSigningKey()
}
