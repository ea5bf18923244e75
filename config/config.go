package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gatewarden/gatewarden/core"
)

// Config aggregates the service configuration values.
type Config struct {
	HTTPAddr string

	// RedisURL switches the nonce, session, wallet and group backends
	// to Redis when set. Empty means in-process stores.
	RedisURL string

	// ProviderURL is the JSON-RPC endpoint used for ENS lookups and
	// group membership checks.
	ProviderURL string

	// Domain is the authority login messages must be bound to.
	Domain string
	// URI is the resource login messages must name. Empty disables
	// the URI comparison.
	URI string

	SessionTTL time.Duration
	// SessionMaxLifetime caps how far refreshes can push a session
	// past its creation time. Zero means no ceiling.
	SessionMaxLifetime time.Duration
	NonceTTL           time.Duration
	ClockSkew          time.Duration
	ChainTimeout       time.Duration

	CookieName   string
	CookieSecure bool
	CSRFExempt   bool

	GroupSyncOnAuth bool
	ENSOnAuth       bool

	// SessionSigningKey is a PEM-encoded EC private key. Empty makes
	// the service generate an ephemeral key at startup.
	SessionSigningKey string

	LogLevel  string
	LogFormat string
}

const (
	defaultHTTPAddr      = ":9000"
	defaultSessionTTL    = 3 * time.Hour
	defaultNonceTTL      = 10 * time.Minute
	defaultClockSkew     = 5 * time.Minute
	defaultChainTimeout  = 5 * time.Second
	defaultCookieName    = "gw_session"
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:          valueOrDefault("HTTP_ADDR", defaultHTTPAddr),
		RedisURL:          os.Getenv("REDIS_URL"),
		ProviderURL:       os.Getenv("PROVIDER_URL"),
		Domain:            os.Getenv("SIWE_DOMAIN"),
		URI:               os.Getenv("SIWE_URI"),
		CookieName:        valueOrDefault("COOKIE_NAME", defaultCookieName),
		CookieSecure:      parseBoolWithDefault("COOKIE_SECURE", false),
		CSRFExempt:        parseBoolWithDefault("CSRF_EXEMPT", false),
		GroupSyncOnAuth:   parseBoolWithDefault("GROUP_SYNC_ON_AUTH", false),
		ENSOnAuth:         parseBoolWithDefault("ENS_ON_AUTH", true),
		SessionSigningKey: os.Getenv("SESSION_SIGNING_KEY"),
		LogLevel:          valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
		LogFormat:         valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SESSION_TTL", defaultSessionTTL, &cfg.SessionTTL},
		{"SESSION_MAX_LIFETIME", 0, &cfg.SessionMaxLifetime},
		{"NONCE_TTL", defaultNonceTTL, &cfg.NonceTTL},
		{"CLOCK_SKEW", defaultClockSkew, &cfg.ClockSkew},
		{"CHAIN_TIMEOUT", defaultChainTimeout, &cfg.ChainTimeout},
	}
	for _, d := range durations {
		val, err := parseDurationWithDefault(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = val
	}

	return cfg, nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("SIWE_DOMAIN is required")
	}
	if c.ProviderURL == "" {
		return core.ErrMissingProvider
	}
	return nil
}

// AllowedOrigins derives the browser origins allowed to send mutating
// requests. The origin comes from the configured URI, falling back to
// https on the login domain.
func (c Config) AllowedOrigins() []string {
	if c.URI != "" {
		if u, err := url.Parse(c.URI); err == nil && u.Scheme != "" && u.Host != "" {
			return []string{u.Scheme + "://" + u.Host}
		}
	}
	if c.Domain == "" {
		return nil
	}
	return []string{"https://" + c.Domain}
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}
