package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamspace/internal/auth"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, 1024, cfg.Cache.Memory.Size)

	require.Equal(t, 30*24*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "http://localhost:8000/auth/google.callback", cfg.Auth.Google.RedirectURL)
	require.Empty(t, cfg.Auth.Google.AllowedDomains)
	require.Equal(t, 30, cfg.Auth.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.Auth.RateLimit.Window)

	require.Equal(t, "https://logo.clearbit.com", cfg.Avatar.LogoBaseURL)
	require.Equal(t, int64(2<<20), cfg.Avatar.MaxBytes)
	require.False(t, cfg.Storage.S3.Enabled)
	require.Equal(t, 4, cfg.Jobs.Workers)
	require.Equal(t, "@hourly", cfg.Maintenance.AvatarSweepSchedule)
	require.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)

	require.Error(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "https://teamspace.example.com", cfg.Server.BaseURL)
	require.True(t, cfg.Server.SecureCookies)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.Options["sslmode"])

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 48*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "yaml-client", cfg.Auth.Google.ClientID)
	require.Equal(t, []string{"acme.com", "example.org"}, cfg.Auth.Google.AllowedDomains)
	require.Equal(t, "https://teamspace.example.com/auth/google.callback", cfg.Auth.Google.RedirectURL)
	require.Equal(t, 10, cfg.Auth.RateLimit.Requests)

	require.Equal(t, time.Second, cfg.Avatar.ProbeTimeout)
	require.Equal(t, int64(1048576), cfg.Avatar.MaxBytes)
	require.Equal(t, "avatars", cfg.Storage.S3.Bucket)
	require.True(t, cfg.Storage.S3.UsePathStyle)
	require.Equal(t, 8, cfg.Jobs.Workers)
	require.Equal(t, "@every 30m", cfg.Maintenance.AvatarSweepSchedule)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TEAMSPACE_SERVER_PORT", "7070")
	t.Setenv("TEAMSPACE_AUTH_JWT_ACCESS_TOKEN_TTL", "1h")
	t.Setenv("TEAMSPACE_CACHE_REDIS_ENABLED", "true")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, time.Hour, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Cache.Redis.Enabled)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "legacy-client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "legacy-secret")
	t.Setenv("GOOGLE_ALLOWED_DOMAINS", "acme.com, example.org")
	t.Setenv("URL", "https://legacy.example.com")
	t.Setenv("SECRET_KEY", "legacy-key")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "legacy-client", cfg.Auth.Google.ClientID)
	require.Equal(t, "legacy-secret", cfg.Auth.Google.ClientSecret)
	require.Equal(t, []string{"acme.com", "example.org"}, cfg.Auth.Google.AllowedDomains)
	require.Equal(t, "https://legacy.example.com", cfg.Server.BaseURL)
	require.Equal(t, "https://legacy.example.com/auth/google.callback", cfg.Auth.Google.RedirectURL)
	require.Equal(t, "legacy-key", cfg.Auth.JWT.Secret)
	require.NoError(t, cfg.Validate())
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "legacy-client")
	t.Setenv("TEAMSPACE_AUTH_GOOGLE_CLIENT_ID", "prefixed-client")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "prefixed-client", cfg.Auth.Google.ClientID)
}

func TestComponentConfigs(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	jwtCfg := cfg.Auth.JWTServiceConfig()
	require.Equal(t, "jwt-secret", jwtCfg.Secret)
	require.Equal(t, 48*time.Hour, jwtCfg.AccessTokenTTL)

	zero := AuthConfig{}
	require.Equal(t, auth.DefaultAccessTokenTTL, zero.JWTServiceConfig().AccessTokenTTL)

	google := cfg.Auth.GoogleConfig()
	require.Equal(t, "yaml-client", google.ClientID)
	require.Equal(t, "https://teamspace.example.com/auth/google.callback", google.RedirectURL)
	require.Equal(t, 5*time.Second, google.Timeout)

	policy := cfg.Auth.DomainPolicy()
	require.True(t, policy.Restricted())

	require.Equal(t, "redis.example.com:6380", cfg.Cache.RedisClientConfig().Address)
	require.Equal(t, 64, cfg.Cache.MemoryConfig().Size)
	require.Equal(t, "postgres", cfg.Database.DatabaseOpenConfig().Driver)
	require.Equal(t, time.Second, cfg.Avatar.ResolverConfig().ProbeTimeout)
	require.Equal(t, "https://cdn.example.com/avatars", cfg.Storage.S3Config().PublicURL)
	require.Equal(t, 8, cfg.Jobs.QueueConfig().Workers)
}
