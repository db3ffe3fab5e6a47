package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all runtime configuration for the phonetree server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir   string
	HTTPPort  int
	TLSCert   string
	TLSKey    string
	LogLevel  string
	LogFormat string // log output format: "text" or "json"

	SessionStore  string        // memory, sqlite, postgres or redis
	SessionTTL    time.Duration // idle lifetime of a call session
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CookieSecret      string // hex-encoded 32-byte secret for call correlation cookies
	WebhookUsername   string // digest credentials the provider presents on /webhook
	WebhookPassword   string
	AdminUsername     string // basic auth user for /api/v1
	AdminPasswordHash string // argon2id hash of the admin password

	RateLimit float64 // webhook requests per second per IP; 0 disables
	RateBurst int

	CompanyName     string
	ReceptionNumber string
	SupportQueue    string
	MaxChainDepth   int // 0 means number of states + 1
}

// defaults
const (
	defaultDataDir         = "./data"
	defaultHTTPPort        = 8080
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultSessionStore    = StoreMemory
	defaultSessionTTL      = 4 * time.Hour
	defaultRedisAddr       = "localhost:6379"
	defaultRateLimit       = 20
	defaultRateBurst       = 40
	defaultCompanyName     = "ACME, Inc."
	defaultReceptionNumber = "+19715701777"
	defaultSupportQueue    = "support"
)

// envPrefix is the prefix for all phonetree environment variables.
const envPrefix = "PHONETREE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("phonetree", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the sqlite session store")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to TLS certificate file")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to TLS private key file")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	fs.StringVar(&cfg.SessionStore, "session-store", defaultSessionStore, "session backend (memory, sqlite, postgres, redis)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", defaultSessionTTL, "idle lifetime of a call session (0 keeps sessions until the call ends)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string for the postgres session store")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", defaultRedisAddr, "Redis address for the redis session store")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")

	fs.StringVar(&cfg.CookieSecret, "cookie-secret", "", "hex-encoded 32-byte secret for call correlation cookies (auto-generated if empty)")
	fs.StringVar(&cfg.WebhookUsername, "webhook-username", "", "username for digest auth on the voice webhook")
	fs.StringVar(&cfg.WebhookPassword, "webhook-password", "", "password for digest auth on the voice webhook")
	fs.StringVar(&cfg.AdminUsername, "admin-username", "", "username for basic auth on the admin API")
	fs.StringVar(&cfg.AdminPasswordHash, "admin-password-hash", "", "argon2id hash of the admin API password")

	fs.Float64Var(&cfg.RateLimit, "rate-limit", defaultRateLimit, "webhook requests per second per client IP (0 disables)")
	fs.IntVar(&cfg.RateBurst, "rate-burst", defaultRateBurst, "webhook rate limit burst size")

	fs.StringVar(&cfg.CompanyName, "company-name", defaultCompanyName, "company name spoken in the greeting")
	fs.StringVar(&cfg.ReceptionNumber, "reception-number", defaultReceptionNumber, "number dialled for the reception option")
	fs.StringVar(&cfg.SupportQueue, "support-queue", defaultSupportQueue, "queue name callers are placed in for support")
	fs.IntVar(&cfg.MaxChainDepth, "max-chain-depth", 0, "maximum states entered in one turn (0 uses the number of states + 1)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	if err := applyEnvOverrides(fs); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envName maps a flag name to its environment variable, e.g. "http-port"
// to "PHONETREE_HTTP_PORT".
func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnvOverrides sets every flag that was not given on the command line
// from its environment variable. Values go through the flag's own parser, so
// a malformed number or duration is reported instead of silently ignored.
func applyEnvOverrides(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		if firstErr != nil || set[f.Name] {
			return
		}
		val, ok := os.LookupEnv(envName(f.Name))
		if !ok || val == "" {
			return
		}
		if err := fs.Set(f.Name, val); err != nil {
			firstErr = fmt.Errorf("invalid %s: %w", envName(f.Name), err)
		}
	})
	return firstErr
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	// TLS cert and key must both be set or both be empty.
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must both be provided or both be omitted")
	}

	c.SessionStore = strings.ToLower(c.SessionStore)
	switch c.SessionStore {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required when session-store is postgres")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required when session-store is redis")
		}
	default:
		return fmt.Errorf("session-store must be one of memory, sqlite, postgres, redis; got %q", c.SessionStore)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session-ttl must not be negative, got %s", c.SessionTTL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis-db must not be negative, got %d", c.RedisDB)
	}

	if (c.WebhookUsername == "") != (c.WebhookPassword == "") {
		return fmt.Errorf("webhook-username and webhook-password must both be provided or both be omitted")
	}
	if (c.AdminUsername == "") != (c.AdminPasswordHash == "") {
		return fmt.Errorf("admin-username and admin-password-hash must both be provided or both be omitted")
	}
	if c.AdminPasswordHash != "" && !strings.HasPrefix(c.AdminPasswordHash, "$argon2id$") {
		return fmt.Errorf("admin-password-hash must be an argon2id hash")
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate-burst must be at least 1 when rate limiting is enabled, got %d", c.RateBurst)
	}

	if c.MaxChainDepth < 0 {
		return fmt.Errorf("max-chain-depth must not be negative, got %d", c.MaxChainDepth)
	}

	return nil
}

// TLSEnabled returns true if TLS certificates are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != ""
}

// WebhookAuthEnabled reports whether /webhook requires digest credentials.
func (c *Config) WebhookAuthEnabled() bool {
	return c.WebhookUsername != ""
}

// AdminAuthEnabled reports whether /api/v1 requires basic credentials.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminUsername != ""
}

// CookieSecretBytes returns the decoded 32-byte cookie signing secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) CookieSecretBytes() ([]byte, error) {
	if c.CookieSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating cookie secret: %w", err)
		}
		c.CookieSecret = hex.EncodeToString(key)
		slog.Warn("no cookie-secret configured, generated ephemeral key (cookie-correlated calls will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.CookieSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding cookie secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("cookie secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
