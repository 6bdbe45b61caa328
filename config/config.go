package config

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"bidhouse/util"
)

// StartupMode defines how bidhouse handles initialization failures for
// optional subsystems (ClickHouse archive, Redis, chain RPC).
type StartupMode string

const (
	// StartupModeStrict fails fast on any initialization error (default)
	StartupModeStrict StartupMode = "strict"
	// StartupModeGraceful starts with degraded functionality, logging warnings
	StartupModeGraceful StartupMode = "graceful"
)

// Storage backends selectable via storage.backend.
const (
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

// EnvProduction is the value of BIDHOUSE_ENV that switches on the
// production gate: required secrets, secure cookies, TLS warnings.
const EnvProduction = "production"

// DataPaths holds data directory and file path configuration.
// These paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (BIDHOUSE_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (BIDHOUSE_SQLITE_PATH, default: ${DataDir}/bidhouse.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RateTier is one rate-limit bucket: Limit tokens per Window with a
// short-term Burst allowance.
type RateTier struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
	Burst  int           `mapstructure:"burst"`
}

// RateLimitConfig holds the multi-tier rate limiting settings.
type RateLimitConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Login     RateTier `mapstructure:"login"`
	Bid       RateTier `mapstructure:"bid"`
	API       RateTier `mapstructure:"api"`
	Global    RateTier `mapstructure:"global"`
	ExemptIPs []string `mapstructure:"exempt_ips"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host                 string          `mapstructure:"host"`
	Port                 int             `mapstructure:"port"`
	TLS                  bool            `mapstructure:"tls"`
	CertFile             string          `mapstructure:"cert_file"`
	KeyFile              string          `mapstructure:"key_file"`
	AllowedOrigins       []string        `mapstructure:"allowed_origins"`
	TrustProxy           bool            `mapstructure:"trust_proxy"`
	TrustedProxyNetworks []string        `mapstructure:"trusted_proxy_networks"`
	JSONBodyLimit        int             `mapstructure:"json_body_limit"`  // bytes
	LoginBodyLimit       int             `mapstructure:"login_body_limit"` // bytes
	RateLimit            RateLimitConfig `mapstructure:"rate_limit"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (a APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// AuthConfig configures JWT authentication and account lockout.
type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTExpiry  time.Duration `mapstructure:"jwt_expiry"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	// LockoutThreshold is the number of failed logins before lockout
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
	// MFAIssuer is the issuer name shown in authenticator apps
	MFAIssuer string `mapstructure:"mfa_issuer"`
	// AdminUsername/AdminPassword seed the first admin account. When empty
	// a random password is generated on first run and printed once.
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	// HashedAdminPassword is derived from AdminPassword at load time; the
	// plaintext is cleared immediately after hashing.
	HashedAdminPassword string
}

// CSRFConfig configures double-submit token protection.
type CSRFConfig struct {
	Secret      string `mapstructure:"secret"`
	CookieName  string `mapstructure:"cookie_name"`
	HeaderName  string `mapstructure:"header_name"`
	TokenLength int    `mapstructure:"token_length"` // random bytes before hex encoding
	SameSite    string `mapstructure:"same_site"`    // strict, lax, none
	Secure      bool   `mapstructure:"secure"`
	HttpOnly    bool   `mapstructure:"http_only"`
	MaxAge      int    `mapstructure:"max_age"` // seconds
}

// SameSiteMode maps the configured same_site string to its http constant.
// Unknown values fall back to Strict.
func (c CSRFConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// ChainConfig configures the blockchain time source.
type ChainConfig struct {
	// RPCURL is the primary JSON-RPC endpoint. Empty disables chain time
	// and every decision degrades to the local clock.
	RPCURL          string        `mapstructure:"rpc_url"`
	FallbackRPCURLs []string      `mapstructure:"fallback_rpc_urls"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// CacheTTL bounds how long a chain reading is served from cache.
	// Ethereum blocks arrive roughly every 12s; a few seconds is safe.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// ProbeEnabled exposes POST /api/v1/time/probe, which dials an
	// arbitrary caller-supplied RPC URL. Admin-only and off by default.
	ProbeEnabled bool `mapstructure:"probe_enabled"`
}

// AuctionConfig configures auction timing policy.
type AuctionConfig struct {
	DefaultGraceSeconds int64         `mapstructure:"default_grace_seconds"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	MinDurationHours    int64         `mapstructure:"min_duration_hours"`
	MaxDurationHours    int64         `mapstructure:"max_duration_hours"`
}

// MongoDBConfig configures the optional MongoDB metadata backend.
type MongoDBConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
}

// ClickHouseConfig configures the security event and bid attempt archive.
type ClickHouseConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TLS         bool   `mapstructure:"tls"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	// Batch pipeline tuning
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	QueueSize     int           `mapstructure:"queue_size"`
	DedupWindow   time.Duration `mapstructure:"dedup_window"`
	Workers       int           `mapstructure:"workers"`
}

// StorageConfig selects and configures the metadata backend plus the
// ClickHouse archive.
type StorageConfig struct {
	// Backend is sqlite (default) or mongodb
	Backend    string           `mapstructure:"backend"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

// RedisConfig configures the shared Redis cache used by the chain clock
// and the distributed rate limiter.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WebhookChannelConfig configures the generic JSON webhook notification
// channel.
type WebhookChannelConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout int               `mapstructure:"timeout"` // seconds
}

// SlackChannelConfig configures the Slack notification channel.
type SlackChannelConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// NotifyBreakerConfig tunes the per-channel circuit breaker.
type NotifyBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	HalfOpenProbes   int           `mapstructure:"half_open_probes"`
}

// NotifyConfig configures outbound security notifications.
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MinSeverity is the lowest severity forwarded: low, medium, high, critical
	MinSeverity    string               `mapstructure:"min_severity"`
	Webhook        WebhookChannelConfig `mapstructure:"webhook"`
	Slack          SlackChannelConfig   `mapstructure:"slack"`
	CircuitBreaker NotifyBreakerConfig  `mapstructure:"circuit_breaker"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// VaultConfig configures the HashiCorp Vault secret provider.
type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Path    string `mapstructure:"path"`
}

// AWSConfig configures the AWS Secrets Manager provider.
type AWSConfig struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	SecretID  string `mapstructure:"secret_id"`
}

// SecretsConfig selects where signing secrets and admin bootstrap
// credentials are loaded from.
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env, vault, aws
	Vault    VaultConfig `mapstructure:"vault"`
	AWS      AWSConfig   `mapstructure:"aws"`
}

// Config holds all configuration for the bidhouse service.
type Config struct {
	// Environment mirrors BIDHOUSE_ENV. "production" enables the
	// production gate; everything else is treated as development.
	Environment string `mapstructure:"environment"`

	// StartupMode controls how initialization failures of optional
	// subsystems are handled: "strict" fails fast, "graceful" degrades.
	StartupMode StartupMode `mapstructure:"startup_mode"`

	DataPaths DataPaths     `mapstructure:"data_paths"`
	API       APIConfig     `mapstructure:"api"`
	Auth      AuthConfig    `mapstructure:"auth"`
	CSRF      CSRFConfig    `mapstructure:"csrf"`
	Chain     ChainConfig   `mapstructure:"chain"`
	Auction   AuctionConfig `mapstructure:"auction"`
	Storage   StorageConfig `mapstructure:"storage"`
	Redis     RedisConfig   `mapstructure:"redis"`
	Notify    NotifyConfig  `mapstructure:"notify"`
	Logging   LoggingConfig `mapstructure:"logging"`
	Secrets   SecretsConfig `mapstructure:"secrets"`
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("environment", "")
	viper.SetDefault("startup_mode", string(StartupModeStrict))

	// Data paths with environment variable overrides
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.cert_file", "server.crt")
	viper.SetDefault("api.key_file", "server.key")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000", "https://localhost:3000"})
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.trusted_proxy_networks", []string{})
	viper.SetDefault("api.json_body_limit", 1048576) // 1MB
	viper.SetDefault("api.login_body_limit", 10240)  // 10KB
	viper.SetDefault("api.rate_limit.enabled", true)
	viper.SetDefault("api.rate_limit.login.limit", 5)
	viper.SetDefault("api.rate_limit.login.window", 1*time.Minute)
	viper.SetDefault("api.rate_limit.login.burst", 5)
	viper.SetDefault("api.rate_limit.bid.limit", 30)
	viper.SetDefault("api.rate_limit.bid.window", 1*time.Minute)
	viper.SetDefault("api.rate_limit.bid.burst", 10)
	viper.SetDefault("api.rate_limit.api.limit", 100)
	viper.SetDefault("api.rate_limit.api.window", 1*time.Minute)
	viper.SetDefault("api.rate_limit.api.burst", 100)
	viper.SetDefault("api.rate_limit.global.limit", 10000)
	viper.SetDefault("api.rate_limit.global.window", 1*time.Second)
	viper.SetDefault("api.rate_limit.global.burst", 10000)
	viper.SetDefault("api.rate_limit.exempt_ips", []string{})

	viper.SetDefault("auth.enabled", true)
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)
	viper.SetDefault("auth.bcrypt_cost", 10)
	viper.SetDefault("auth.lockout_threshold", 5)
	viper.SetDefault("auth.lockout_duration", 15*time.Minute)
	viper.SetDefault("auth.mfa_issuer", "bidhouse")

	viper.SetDefault("csrf.cookie_name", "_csrf_token")
	viper.SetDefault("csrf.header_name", "x-csrf-token")
	viper.SetDefault("csrf.token_length", 32)
	viper.SetDefault("csrf.same_site", "strict")
	viper.SetDefault("csrf.http_only", false)
	viper.SetDefault("csrf.max_age", 86400)
	// csrf.secure deliberately has no default: production turns it on
	// unless explicitly overridden, development leaves it off.

	viper.SetDefault("chain.rpc_url", "")
	viper.SetDefault("chain.fallback_rpc_urls", []string{})
	viper.SetDefault("chain.request_timeout", 5*time.Second)
	viper.SetDefault("chain.cache_ttl", 3*time.Second)
	viper.SetDefault("chain.probe_enabled", false)

	viper.SetDefault("auction.default_grace_seconds", 30)
	viper.SetDefault("auction.sweep_interval", 30*time.Second)
	viper.SetDefault("auction.min_duration_hours", 1)
	viper.SetDefault("auction.max_duration_hours", 720) // 30 days

	viper.SetDefault("storage.backend", BackendSQLite)
	viper.SetDefault("storage.mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("storage.mongodb.database", "bidhouse")
	viper.SetDefault("storage.mongodb.max_pool_size", 10)
	// Use 127.0.0.1 instead of localhost to avoid IPv6 resolution issues on Windows
	viper.SetDefault("storage.clickhouse.enabled", false)
	viper.SetDefault("storage.clickhouse.addr", "127.0.0.1:9000")
	viper.SetDefault("storage.clickhouse.database", "bidhouse")
	viper.SetDefault("storage.clickhouse.username", "default")
	viper.SetDefault("storage.clickhouse.password", "")
	viper.SetDefault("storage.clickhouse.tls", false)
	viper.SetDefault("storage.clickhouse.max_pool_size", 10)
	viper.SetDefault("storage.clickhouse.batch_size", 1000)
	viper.SetDefault("storage.clickhouse.flush_interval", 5*time.Second)
	viper.SetDefault("storage.clickhouse.queue_size", 10000)
	viper.SetDefault("storage.clickhouse.dedup_window", 10*time.Second)
	viper.SetDefault("storage.clickhouse.workers", 2)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.min_severity", "high")
	viper.SetDefault("notify.webhook.enabled", false)
	viper.SetDefault("notify.webhook.url", "")
	viper.SetDefault("notify.webhook.headers", map[string]string{})
	viper.SetDefault("notify.webhook.timeout", 10) // seconds
	viper.SetDefault("notify.slack.enabled", false)
	viper.SetDefault("notify.slack.webhook_url", "")
	viper.SetDefault("notify.slack.channel", "")
	viper.SetDefault("notify.slack.username", "bidhouse")
	viper.SetDefault("notify.circuit_breaker.failure_threshold", 5)
	viper.SetDefault("notify.circuit_breaker.cooldown", 60*time.Second)
	viper.SetDefault("notify.circuit_breaker.half_open_probes", 1)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("BIDHOUSE")
	viper.AutomaticEnv()

	// Explicit environment variable bindings for nested keys.
	// These allow shorter, cleaner env var names.
	_ = viper.BindEnv("environment", "BIDHOUSE_ENV")
	_ = viper.BindEnv("startup_mode", "BIDHOUSE_STARTUP_MODE")
	_ = viper.BindEnv("data_paths.data_dir", "BIDHOUSE_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "BIDHOUSE_SQLITE_PATH")
	_ = viper.BindEnv("api.host", "BIDHOUSE_API_HOST")
	_ = viper.BindEnv("api.port", "BIDHOUSE_API_PORT")
	_ = viper.BindEnv("api.tls", "BIDHOUSE_API_TLS")
	_ = viper.BindEnv("auth.jwt_secret", "BIDHOUSE_AUTH_JWT_SECRET")
	_ = viper.BindEnv("auth.admin_username", "BIDHOUSE_AUTH_ADMIN_USERNAME")
	_ = viper.BindEnv("auth.admin_password", "BIDHOUSE_AUTH_ADMIN_PASSWORD")
	_ = viper.BindEnv("csrf.secret", "BIDHOUSE_CSRF_SECRET")
	_ = viper.BindEnv("csrf.secure", "BIDHOUSE_CSRF_SECURE")
	_ = viper.BindEnv("chain.rpc_url", "BIDHOUSE_CHAIN_RPC_URL")
	_ = viper.BindEnv("storage.backend", "BIDHOUSE_STORAGE_BACKEND")
	_ = viper.BindEnv("storage.mongodb.uri", "BIDHOUSE_MONGODB_URI")
	_ = viper.BindEnv("storage.clickhouse.enabled", "BIDHOUSE_CLICKHOUSE_ENABLED")
	_ = viper.BindEnv("storage.clickhouse.addr", "BIDHOUSE_CLICKHOUSE_ADDR")
	_ = viper.BindEnv("storage.clickhouse.password", "BIDHOUSE_CLICKHOUSE_PASSWORD")
	_ = viper.BindEnv("redis.enabled", "BIDHOUSE_REDIS_ENABLED")
	_ = viper.BindEnv("redis.addr", "BIDHOUSE_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "BIDHOUSE_REDIS_PASSWORD")
	_ = viper.BindEnv("logging.level", "BIDHOUSE_LOG_LEVEL")
	_ = viper.BindEnv("logging.format", "BIDHOUSE_LOG_FORMAT")
}

// validateAndHash enforces secret policy and hashes the admin bootstrap
// password.
func validateAndHash(config *Config) error {
	if config.IsProduction() {
		if err := util.ValidateSecretStrength("csrf secret", config.CSRF.Secret); err != nil {
			return fmt.Errorf("production requires a strong CSRF secret (BIDHOUSE_CSRF_SECRET): %w", err)
		}
		if config.Auth.Enabled {
			if err := util.ValidateSecretStrength("jwt secret", config.Auth.JWTSecret); err != nil {
				return fmt.Errorf("production requires a strong JWT secret (BIDHOUSE_AUTH_JWT_SECRET): %w", err)
			}
		}
	} else {
		// Development tolerates absent secrets but never weak ones.
		if config.CSRF.Secret != "" {
			if err := util.ValidateSecretStrength("csrf secret", config.CSRF.Secret); err != nil {
				return err
			}
		}
		if config.Auth.Enabled && config.Auth.JWTSecret != "" {
			if err := util.ValidateSecretStrength("jwt secret", config.Auth.JWTSecret); err != nil {
				return err
			}
		}
	}

	// Hash the admin bootstrap password if provided
	if config.Auth.AdminPassword != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(config.Auth.AdminPassword), config.Auth.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		config.Auth.HashedAdminPassword = string(hashed)
		config.Auth.AdminPassword = "" // clear plain password
	}

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from the default search paths and
// environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration from an explicit file when path is
// non-empty, otherwise from the default search paths. Environment
// variables override file values either way.
func LoadConfigFrom(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		if path != "" {
			// An explicitly requested file must exist and parse.
			return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
		}
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Secure cookies default on in production unless explicitly set.
	if config.IsProduction() && !viper.IsSet("csrf.secure") {
		config.CSRF.Secure = true
	}

	// Resolve signing secrets and admin bootstrap credentials before
	// validation so the production gate sees the final values.
	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateAndHash(&config); err != nil {
		return nil, err
	}

	// Resolve data paths (derive from data_dir if not explicitly set)
	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir if not
// explicitly set.
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "bidhouse.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		// Relative paths are relative to the current directory, not data_dir
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "bidhouse.db")
	}
	return c.DataPaths.SQLitePath
}

// IsProduction returns true when BIDHOUSE_ENV is production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IsGracefulMode returns true if the startup mode is graceful
func (c *Config) IsGracefulMode() bool {
	return c.StartupMode == StartupModeGraceful
}

// ProductionWarnings returns advisory findings that do not block startup.
// The caller logs them once a logger exists.
func (c *Config) ProductionWarnings() []string {
	if !c.IsProduction() {
		return nil
	}
	var warnings []string
	if !c.API.TLS {
		warnings = append(warnings, "api.tls is disabled in production; enable it or terminate TLS upstream")
	}
	if !c.CSRF.Secure {
		warnings = append(warnings, "csrf.secure is disabled in production; the token cookie will travel over plain HTTP")
	}
	if c.Chain.RPCURL == "" {
		warnings = append(warnings, "chain.rpc_url is empty; auction decisions will rely on the local clock only")
	}
	return warnings
}

// validateConfig validates the configuration for security and correctness
func validateConfig(config *Config) error {
	switch config.StartupMode {
	case StartupModeStrict, StartupModeGraceful:
	default:
		return fmt.Errorf("invalid startup_mode: %q (must be strict or graceful)", config.StartupMode)
	}

	// Validate storage backend
	switch config.Storage.Backend {
	case BackendSQLite:
	case BackendMongoDB:
		uri := config.Storage.MongoDB.URI
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			return fmt.Errorf("invalid MongoDB URI: must start with mongodb:// or mongodb+srv://")
		}
		parsed, err := url.Parse(uri)
		if err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("invalid MongoDB URI: missing host")
		}
		if config.Storage.MongoDB.Database == "" {
			return fmt.Errorf("MongoDB database cannot be empty")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be sqlite or mongodb)", config.Storage.Backend)
	}

	// Validate ClickHouse archive settings
	if config.Storage.ClickHouse.Enabled {
		ch := config.Storage.ClickHouse
		if ch.Addr == "" {
			return fmt.Errorf("clickhouse addr cannot be empty when the archive is enabled")
		}
		if ch.BatchSize < 1 {
			return fmt.Errorf("clickhouse batch_size must be positive, got %d", ch.BatchSize)
		}
		if ch.FlushInterval <= 0 {
			return fmt.Errorf("clickhouse flush_interval must be positive, got %v", ch.FlushInterval)
		}
		if ch.QueueSize < ch.BatchSize {
			return fmt.Errorf("clickhouse queue_size must be at least batch_size, got %d < %d", ch.QueueSize, ch.BatchSize)
		}
		if ch.Workers < 1 {
			return fmt.Errorf("clickhouse workers must be positive, got %d", ch.Workers)
		}
	}

	// Validate API server settings
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}
	if config.API.Host == "" {
		return fmt.Errorf("API host cannot be empty")
	}
	for _, origin := range config.API.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if !isValidOrigin(origin) {
			return fmt.Errorf("invalid CORS origin: %s (must be scheme://host[:port])", origin)
		}
	}
	for _, network := range config.API.TrustedProxyNetworks {
		if !isValidIPOrCIDR(network) {
			return fmt.Errorf("invalid trusted proxy network: %s (must be IP or CIDR)", network)
		}
	}
	if config.API.JSONBodyLimit < 1 {
		return fmt.Errorf("api.json_body_limit must be positive, got %d", config.API.JSONBodyLimit)
	}
	if config.API.LoginBodyLimit < 1 {
		return fmt.Errorf("api.login_body_limit must be positive, got %d", config.API.LoginBodyLimit)
	}

	// Validate rate limit tiers
	if config.API.RateLimit.Enabled {
		tiers := []struct {
			name string
			tier RateTier
		}{
			{"login", config.API.RateLimit.Login},
			{"bid", config.API.RateLimit.Bid},
			{"api", config.API.RateLimit.API},
			{"global", config.API.RateLimit.Global},
		}
		for _, t := range tiers {
			if t.tier.Limit < 1 {
				return fmt.Errorf("rate_limit.%s.limit must be positive, got %d", t.name, t.tier.Limit)
			}
			if t.tier.Window <= 0 {
				return fmt.Errorf("rate_limit.%s.window must be positive, got %v", t.name, t.tier.Window)
			}
			if t.tier.Burst < 1 {
				return fmt.Errorf("rate_limit.%s.burst must be positive, got %d", t.name, t.tier.Burst)
			}
		}
		for _, ip := range config.API.RateLimit.ExemptIPs {
			if net.ParseIP(ip) == nil {
				return fmt.Errorf("invalid rate limit exempt IP: %s", ip)
			}
		}
	}

	// Validate auth
	if config.Auth.Enabled {
		if config.Auth.JWTExpiry <= 0 {
			return fmt.Errorf("auth.jwt_expiry must be positive, got %v", config.Auth.JWTExpiry)
		}
		if config.Auth.BcryptCost < bcrypt.MinCost || config.Auth.BcryptCost > bcrypt.MaxCost {
			return fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, config.Auth.BcryptCost)
		}
		if config.Auth.LockoutThreshold < 1 {
			return fmt.Errorf("auth.lockout_threshold must be positive, got %d", config.Auth.LockoutThreshold)
		}
		if config.Auth.LockoutDuration <= 0 {
			return fmt.Errorf("auth.lockout_duration must be positive, got %v", config.Auth.LockoutDuration)
		}
	}

	// Validate CSRF settings
	if config.CSRF.TokenLength < 16 || config.CSRF.TokenLength > 64 {
		return fmt.Errorf("csrf.token_length must be between 16 and 64 bytes, got %d", config.CSRF.TokenLength)
	}
	switch strings.ToLower(config.CSRF.SameSite) {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("csrf.same_site must be strict, lax, or none, got %q", config.CSRF.SameSite)
	}
	if config.CSRF.MaxAge < 1 {
		return fmt.Errorf("csrf.max_age must be positive, got %d", config.CSRF.MaxAge)
	}

	// Validate chain time settings
	if config.Chain.RPCURL != "" {
		if err := validateRPCURL(config.Chain.RPCURL); err != nil {
			return fmt.Errorf("invalid chain.rpc_url: %w", err)
		}
	}
	for _, u := range config.Chain.FallbackRPCURLs {
		if err := validateRPCURL(u); err != nil {
			return fmt.Errorf("invalid chain fallback RPC URL: %w", err)
		}
	}
	if config.Chain.RequestTimeout <= 0 {
		return fmt.Errorf("chain.request_timeout must be positive, got %v", config.Chain.RequestTimeout)
	}
	if config.Chain.RequestTimeout > 2*time.Minute {
		return fmt.Errorf("chain.request_timeout must be at most 2m, got %v", config.Chain.RequestTimeout)
	}
	if config.Chain.CacheTTL < 0 {
		return fmt.Errorf("chain.cache_ttl cannot be negative, got %v", config.Chain.CacheTTL)
	}

	// Validate auction timing policy
	if config.Auction.MinDurationHours < 1 {
		return fmt.Errorf("auction.min_duration_hours must be at least 1, got %d", config.Auction.MinDurationHours)
	}
	if config.Auction.MaxDurationHours < config.Auction.MinDurationHours {
		return fmt.Errorf("auction.max_duration_hours must be at least min_duration_hours, got %d < %d",
			config.Auction.MaxDurationHours, config.Auction.MinDurationHours)
	}
	if config.Auction.DefaultGraceSeconds < 0 || config.Auction.DefaultGraceSeconds > 3600 {
		return fmt.Errorf("auction.default_grace_seconds must be between 0 and 3600, got %d", config.Auction.DefaultGraceSeconds)
	}
	if config.Auction.SweepInterval < time.Second {
		return fmt.Errorf("auction.sweep_interval must be at least 1s, got %v", config.Auction.SweepInterval)
	}

	// Validate Redis
	if config.Redis.Enabled {
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis.addr cannot be empty when Redis is enabled")
		}
		if config.Redis.DB < 0 {
			return fmt.Errorf("redis.db cannot be negative, got %d", config.Redis.DB)
		}
		if config.Redis.PoolSize < 1 {
			return fmt.Errorf("redis.pool_size must be positive, got %d", config.Redis.PoolSize)
		}
	}

	// Validate notifications
	if config.Notify.Enabled {
		switch config.Notify.MinSeverity {
		case "low", "medium", "high", "critical":
		default:
			return fmt.Errorf("notify.min_severity must be low, medium, high, or critical, got %q", config.Notify.MinSeverity)
		}
		if !config.Notify.Webhook.Enabled && !config.Notify.Slack.Enabled {
			return fmt.Errorf("notifications enabled but no channel is configured")
		}
		if config.Notify.Webhook.Enabled {
			if !isValidOrigin(config.Notify.Webhook.URL) {
				return fmt.Errorf("invalid notify webhook URL: %s", config.Notify.Webhook.URL)
			}
			if config.Notify.Webhook.Timeout < 1 || config.Notify.Webhook.Timeout > 60 {
				return fmt.Errorf("notify.webhook.timeout must be between 1 and 60 seconds, got %d", config.Notify.Webhook.Timeout)
			}
		}
		if config.Notify.Slack.Enabled && config.Notify.Slack.WebhookURL == "" {
			return fmt.Errorf("notify.slack.webhook_url cannot be empty when the Slack channel is enabled")
		}
		if config.Notify.CircuitBreaker.FailureThreshold < 1 {
			return fmt.Errorf("notify.circuit_breaker.failure_threshold must be positive, got %d", config.Notify.CircuitBreaker.FailureThreshold)
		}
		if config.Notify.CircuitBreaker.Cooldown <= 0 {
			return fmt.Errorf("notify.circuit_breaker.cooldown must be positive, got %v", config.Notify.CircuitBreaker.Cooldown)
		}
		if config.Notify.CircuitBreaker.HalfOpenProbes < 1 {
			return fmt.Errorf("notify.circuit_breaker.half_open_probes must be positive, got %d", config.Notify.CircuitBreaker.HalfOpenProbes)
		}
	}

	// Validate logging
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", config.Logging.Level)
	}
	switch config.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", config.Logging.Format)
	}

	return nil
}

// isValidOrigin checks that a string is an absolute http(s) URL with a host
func isValidOrigin(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// validateRPCURL checks that an RPC endpoint uses a supported scheme
func validateRPCURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("unparseable URL %q: %w", raw, err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q in %q (must be http, https, ws, or wss)", parsed.Scheme, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// isValidIPOrCIDR checks if a string is a valid IP address or CIDR
func isValidIPOrCIDR(ipStr string) bool {
	// Try parsing as IP
	if ip := net.ParseIP(ipStr); ip != nil {
		return true
	}
	// Try parsing as CIDR
	if _, _, err := net.ParseCIDR(ipStr); err == nil {
		return true
	}
	return false
}
