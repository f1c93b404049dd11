package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Teamspace backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Avatar      AvatarConfig      `mapstructure:"avatar"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	LogLevel      string `mapstructure:"log_level"`
	BaseURL       string `mapstructure:"base_url"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Name     string            `mapstructure:"name"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis  RedisCacheConfig  `mapstructure:"redis"`
	Memory MemoryCacheConfig `mapstructure:"memory"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MemoryCacheConfig sizes the in-process cache used when Redis is disabled.
type MemoryCacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT       JWTSettings       `mapstructure:"jwt"`
	Google    GoogleSettings    `mapstructure:"google"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// GoogleSettings configures the Google OAuth client and the hosted domain allow-list.
type GoogleSettings struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	RedirectURL    string        `mapstructure:"redirect_url"`
	AuthURL        string        `mapstructure:"auth_url"`
	TokenURL       string        `mapstructure:"token_url"`
	UserInfoURL    string        `mapstructure:"userinfo_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// RateLimitSettings throttles the sign-in endpoints per client IP. Negative requests disable it.
type RateLimitSettings struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// AvatarConfig configures logo probing and avatar re-hosting.
type AvatarConfig struct {
	LogoBaseURL     string        `mapstructure:"logo_base_url"`
	FallbackBaseURL string        `mapstructure:"fallback_base_url"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
}

// StorageConfig selects the object store for re-hosted avatars.
type StorageConfig struct {
	S3 S3Settings `mapstructure:"s3"`
}

// S3Settings configures an S3 or S3-compatible bucket.
type S3Settings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PublicURL       string `mapstructure:"public_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicRead      bool   `mapstructure:"public_read"`
}

// JobsConfig sizes the background worker pool.
type JobsConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// MaintenanceConfig schedules periodic cleanup.
type MaintenanceConfig struct {
	AuditRetentionDays  int    `mapstructure:"audit_retention_days"`
	AuditSchedule       string `mapstructure:"audit_schedule"`
	AvatarSweepSchedule string `mapstructure:"avatar_sweep_schedule"`
	AvatarSweepBatch    int    `mapstructure:"avatar_sweep_batch"`
}

// legacyEnv maps configuration keys onto the unprefixed variable names older
// deployments export.
var legacyEnv = map[string]string{
	"auth.google.client_id":       "GOOGLE_CLIENT_ID",
	"auth.google.client_secret":   "GOOGLE_CLIENT_SECRET",
	"auth.google.allowed_domains": "GOOGLE_ALLOWED_DOMAINS",
	"auth.jwt.secret":             "SECRET_KEY",
	"server.base_url":             "URL",
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("TEAMSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "TEAMSPACE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	config.normalize()

	return &config, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		missing = append(missing, "auth.jwt.secret")
	}
	if strings.TrimSpace(c.Auth.Google.ClientID) == "" {
		missing = append(missing, "auth.google.client_id")
	}
	if strings.TrimSpace(c.Auth.Google.ClientSecret) == "" {
		missing = append(missing, "auth.google.client_secret")
	}
	if c.Storage.S3.Enabled && strings.TrimSpace(c.Storage.S3.Bucket) == "" {
		missing = append(missing, "storage.s3.bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) normalize() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Auth.Google.RedirectURL == "" {
		c.Auth.Google.RedirectURL = c.Server.BaseURL + "/auth/google.callback"
	}

	domains := c.Auth.Google.AllowedDomains[:0]
	for _, domain := range c.Auth.Google.AllowedDomains {
		if domain = strings.TrimSpace(domain); domain != "" {
			domains = append(domains, domain)
		}
	}
	c.Auth.Google.AllowedDomains = domains
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/teamspace.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.memory.size", 1024)
	v.SetDefault("cache.memory.ttl", "24h")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "teamspace")
	v.SetDefault("auth.jwt.access_token_ttl", "720h") // 30 days
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.allowed_domains", []string{})
	v.SetDefault("auth.google.redirect_url", "")
	v.SetDefault("auth.google.auth_url", "")
	v.SetDefault("auth.google.token_url", "")
	v.SetDefault("auth.google.userinfo_url", "")
	v.SetDefault("auth.google.timeout", "10s")
	v.SetDefault("auth.rate_limit.requests", 30)
	v.SetDefault("auth.rate_limit.window", "1m")

	v.SetDefault("avatar.logo_base_url", "https://logo.clearbit.com")
	v.SetDefault("avatar.fallback_base_url", "https://tiley.herokuapp.com")
	v.SetDefault("avatar.probe_timeout", "3s")
	v.SetDefault("avatar.cache_ttl", "24h")
	v.SetDefault("avatar.max_bytes", 2<<20)

	v.SetDefault("storage.s3.enabled", false)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.public_url", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.public_read", true)

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_size", 256)
	v.SetDefault("jobs.task_timeout", "30s")

	v.SetDefault("maintenance.audit_retention_days", 90)
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.avatar_sweep_schedule", "@hourly")
	v.SetDefault("maintenance.avatar_sweep_batch", 100)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
