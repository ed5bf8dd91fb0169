package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-development-secret-of-at-least-32-chars"

// validConfig is the smallest configuration accepted in development
func validConfig() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Port: "8080"},
		Auth: AuthConfig{
			JWTSecret:            testSecret,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
		},
		RateLimiter: RateLimiterConfig{Enabled: true, RPS: 10, Burst: 20},
		Jobs:        JobsConfig{Enabled: true, TokenPurge: "@daily", AbonnementExpiry: "5 0 * * *", DBStats: "@every 1m"},
		Websocket:   WebsocketConfig{Enabled: true, BufferSize: 32},
	}
}

// validProduction passes every production-only rule
func validProduction() *Config {
	c := validConfig()
	c.Environment = "production"
	c.Database.DSN = "postgres://peages@db/peages"
	c.Auth.CookieSecure = true
	c.Cors.AllowedOrigins = []string{"https://peages.bf"}
	return c
}

func TestConfig_Environment(t *testing.T) {
	tests := []struct {
		env        string
		production bool
		dev        bool
	}{
		{"production", true, false},
		{"development", false, true},
		{"test", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		c := &Config{Environment: tt.env}
		assert.Equal(t, tt.production, c.IsProduction(), tt.env)
		assert.Equal(t, tt.production, c.IsProd(), tt.env)
		assert.Equal(t, tt.dev, c.IsDevelopment(), tt.env)
		assert.Equal(t, tt.dev, c.IsDev(), tt.env)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		base    func() *Config
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid development", validConfig, nil, ""},
		{"valid production", validProduction, nil, ""},
		{"rate limiter disabled ignores rps", validConfig, func(c *Config) { c.RateLimiter = RateLimiterConfig{} }, ""},
		{"jobs disabled ignores schedules", validConfig, func(c *Config) { c.Jobs = JobsConfig{TokenPurge: "never"} }, ""},

		{"missing port", validConfig, func(c *Config) { c.Server.Port = "" }, "server.port"},
		{"unknown database", validConfig, func(c *Config) { c.Database.Type = "oracle" }, "database.type"},
		{"short jwt secret", validConfig, func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32"},
		{"zero access duration", validConfig, func(c *Config) { c.Auth.AccessTokenDuration = 0 }, "access_token_duration"},
		{"refresh shorter than access", validConfig, func(c *Config) { c.Auth.RefreshTokenDuration = time.Minute }, "refresh_token_duration"},
		{"bcrypt cost", validConfig, func(c *Config) { c.Security.BcryptCost = 40 }, "bcrypt_cost"},
		{"rate limiter rps", validConfig, func(c *Config) { c.RateLimiter.RPS = 0 }, "rate_limiter.rps"},
		{"rate limiter burst", validConfig, func(c *Config) { c.RateLimiter.Burst = 0 }, "rate_limiter.burst"},
		{"log level", validConfig, func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", validConfig, func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"loki without url", validConfig, func(c *Config) { c.Logging.LokiEnabled = true }, "loki_url"},
		{"redis without addr", validConfig, func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
		{"bad cron", validConfig, func(c *Config) { c.Jobs.AbonnementExpiry = "tous les jours" }, "jobs.abonnement_expiry"},
		{"websocket buffer", validConfig, func(c *Config) { c.Websocket.BufferSize = 0 }, "buffer_size"},
		{"decimals", validConfig, func(c *Config) { c.Accounting.Decimals = 6 }, "accounting.decimals"},
		{"backup retention", validConfig, func(c *Config) { c.Backup = BackupConfig{Enabled: true} }, "retention_days"},

		{"production default secret", validProduction, func(c *Config) { c.Auth.JWTSecret = DefaultJWTSecret }, "default value"},
		{"production insecure cookie", validProduction, func(c *Config) { c.Auth.CookieSecure = false }, "cookie_secure"},
		{"production without dsn", validProduction, func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"production wildcard cors", validProduction, func(c *Config) { c.Cors.AllowedOrigins = []string{"*"} }, "cors.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.base()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryError(t *testing.T) {
	c := validConfig()
	c.Server.Port = ""
	c.Auth.JWTSecret = ""
	c.Logging.Format = "xml"

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.port")
	assert.ErrorContains(t, err, "jwt_secret")
	assert.ErrorContains(t, err, "logging.format")
}

// inTempDir runs LoadConfig away from any config.yaml or .env of the repo
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Empty(t, cfg.Database.MigrationsPath, "embedded migrations")
	assert.Equal(t, 72*time.Hour, cfg.Security.InvitationTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.PermissionTTL)
	assert.True(t, cfg.Jobs.Enabled)
	assert.Equal(t, "@daily", cfg.Jobs.TokenPurge)
	assert.Equal(t, 32, cfg.Websocket.BufferSize)
	assert.Equal(t, "development", cfg.Logging.LokiLabels["environment"])
	assert.Equal(t, "gestion-peages", cfg.Logging.LokiLabels["app"])
}

func TestLoadConfig_Environment(t *testing.T) {
	inTempDir(t)
	t.Setenv("PEAGES_SERVER_PORT", "9000")
	t.Setenv("PEAGES_ENVIRONMENT", "test")
	t.Setenv("PEAGES_REDIS_ENABLED", "true")
	t.Setenv("PEAGES_ACCOUNTING_DECIMALS", "2")
	t.Setenv("PEAGES_CORS_ALLOWED_ORIGINS", "https://a.peages.bf,https://b.peages.bf")
	t.Setenv("JWT_SECRET", "legacy-variable-secret-with-32-characters")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.True(t, cfg.Redis.Enabled)
	assert.EqualValues(t, 2, cfg.Accounting.Decimals)
	assert.Equal(t, []string{"https://a.peages.bf", "https://b.peages.bf"}, cfg.Cors.AllowedOrigins)
	assert.Equal(t, "legacy-variable-secret-with-32-characters", cfg.Auth.JWTSecret)

	t.Setenv("PEAGES_AUTH_JWT_SECRET", "prefixed-variable-secret-with-32-characters")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "prefixed-variable-secret-with-32-characters", cfg.Auth.JWTSecret, "prefixed variable wins")
}

func TestLoadConfig_Files(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: \"6060\"\njobs:\n  db_stats: \"@every 5m\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PEAGES_SERVER_PORT=7070\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PEAGES_SERVER_PORT") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port, ".env beats config.yaml")
	assert.Equal(t, "@every 5m", cfg.Jobs.DBStats)
}

func TestLoadConfig_Invalid(t *testing.T) {
	inTempDir(t)
	t.Setenv("PEAGES_JOBS_TOKEN_PURGE", "chaque nuit")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "jobs.token_purge")
}
