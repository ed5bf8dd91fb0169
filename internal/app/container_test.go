package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			DSN:  filepath.Join(dir, "peages.db"),
		},
		Auth: config.AuthConfig{
			JWTSecret:            "a-very-long-test-secret-with-enough-entropy-123",
			AccessTokenDuration:  time.Minute,
			RefreshTokenDuration: time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:        4,
			MaxFailedAttempts: 3,
			LockoutDuration:   time.Minute,
		},
		SMTP: config.SMTPConfig{
			Host: "localhost",
			Port: 1025,
			From: "test@example.com",
		},
		Backup: config.BackupConfig{Path: filepath.Join(dir, "backups"), RetentionDays: 7},
	}
}

func TestNewContainer(t *testing.T) {
	container, err := app.NewContainer(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, container)
	defer container.Close()

	assert.NotNil(t, container.DB)
	assert.NotNil(t, container.UserRepo)
	assert.NotNil(t, container.RefreshTokenStore)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Registry)
	assert.NotNil(t, container.Hub)
	assert.NotNil(t, container.Cache)
	assert.NotNil(t, container.AuthSvc)
	assert.NotNil(t, container.PasswordSvc)
	assert.NotNil(t, container.UserSvc)
	assert.NotNil(t, container.SessionSvc)
	assert.NotNil(t, container.DashboardSvc)
	assert.Empty(t, container.Jobs.Jobs(), "jobs disabled by default")

	require.NoError(t, container.DB.Ping())

	// embedded migrations applied and built-in roles seeded
	roles, err := container.RoleSvc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, len(domain.DefaultRoles()))

	ok, err := container.RoleSvc.RoleHasPermission(context.Background(), domain.RoleCaissier, domain.PermissionSessionsSell)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewContainer_Twice(t *testing.T) {
	cfg := testConfig(t)
	first, err := app.NewContainer(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// reopening the same database keeps seeded roles and metrics registration
	second, err := app.NewContainer(cfg)
	require.NoError(t, err)
	defer second.Close()
}

func TestNewContainer_Jobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs = config.JobsConfig{
		Enabled:          true,
		TokenPurge:       "@daily",
		AbonnementExpiry: "@every 1h",
		Backup:           "@daily",
		DBStats:          "",
	}
	cfg.Backup.Enabled = true

	container, err := app.NewContainer(cfg)
	require.NoError(t, err)
	defer container.Close()

	assert.ElementsMatch(t, []string{"token_purge", "abonnement_expiry", "database_backup"}, container.Jobs.Jobs())
}

func TestNewContainer_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs = config.JobsConfig{Enabled: true, TokenPurge: "tous les jours"}

	_, err := app.NewContainer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_purge")
}

func TestNewContainer_RedisFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}

	container, err := app.NewContainer(cfg)
	require.NoError(t, err)
	defer container.Close()

	ok, err := container.RoleSvc.RoleHasPermission(context.Background(), domain.RoleAdmin, domain.PermissionPcgRead)
	require.NoError(t, err)
	assert.True(t, ok, "in-memory cache used when redis is unreachable")
}
