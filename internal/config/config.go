// Package config provides application configuration management using Viper.
// It supports loading configuration from YAML files, a .env file and environment
// variables, with built-in validation for production and development environments.
// Sections cover the database (SQLite, MySQL, PostgreSQL), authentication, security
// policies, CORS, rate limiting, SMTP, logging, Redis, scheduled jobs, the websocket
// change feed and accounting rounding.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override / Préfixe de chaque variable d'environnement
const EnvPrefix = "PEAGES"

// Config holds all application configuration / Contient toute la configuration de l'application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Environment string            `mapstructure:"environment"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Security    SecurityConfig    `mapstructure:"security"`
	Cors        CorsConfig        `mapstructure:"cors"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Websocket   WebsocketConfig   `mapstructure:"websocket"`
	Accounting  AccountingConfig  `mapstructure:"accounting"`
}

// ServerConfig holds server configuration / Configuration serveur
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BaseURL      string        `mapstructure:"base_url"`
	FrontendURL  string        `mapstructure:"frontend_url"`
}

// DatabaseConfig holds database-specific configuration / Configuration de la base de données
type DatabaseConfig struct {
	Type           string `mapstructure:"type"`            // Database type: "sqlite", "mysql", or "postgres"
	DSN            string `mapstructure:"dsn"`             // Data Source Name; MySQL needs parseTime=true&clientFoundRows=true
	MigrationsPath string `mapstructure:"migrations_path"` // Migration directory, embedded migrations when empty
	MaxOpenConns   int    `mapstructure:"max_open_conns"`  // Maximum number of open connections (default: 25)
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`  // Maximum number of idle connections (default: 5)
}

// BackupConfig holds database backup configuration / Configuration des sauvegardes de la base de données
type BackupConfig struct {
	Enabled       bool   `mapstructure:"enabled"`        // Enable automatic backups / Active les sauvegardes automatiques
	Path          string `mapstructure:"path"`           // Directory to store backups / Répertoire de stockage
	RetentionDays int    `mapstructure:"retention_days"` // Number of days to keep backups / Nombre de jours de rétention
}

// AuthConfig holds JWT and cookie configuration / Configuration JWT et cookies
type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	CookieDomain         string        `mapstructure:"cookie_domain"`
	CookiePath           string        `mapstructure:"cookie_path"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
}

// SecurityConfig holds security settings / Paramètres de sécurité
type SecurityConfig struct {
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
	InvitationTTL     time.Duration `mapstructure:"invitation_ttl"` // Validity of account activation links
	PasswordResetTTL  time.Duration `mapstructure:"password_reset_ttl"`
}

// CorsConfig holds CORS configuration / Configuration CORS
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimiterConfig holds rate limiter configuration / Configuration limiteur de débit
type RateLimiterConfig struct {
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
	Enabled bool    `mapstructure:"enabled"`
}

// SMTPConfig holds SMTP server configuration / Configuration serveur SMTP
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LoggingConfig holds logging configuration / Configuration logging
type LoggingConfig struct {
	Level         string            `mapstructure:"level"`
	Format        string            `mapstructure:"format"`
	LokiEnabled   bool              `mapstructure:"loki_enabled"`
	LokiURL       string            `mapstructure:"loki_url"`
	LokiLabels    map[string]string `mapstructure:"loki_labels"`
	LokiBatchSize int               `mapstructure:"loki_batch_size"`
}

// RedisConfig holds the optional shared cache / Configuration du cache partagé optionnel
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PermissionTTL time.Duration `mapstructure:"permission_ttl"` // Also used by the in-memory cache
}

// JobsConfig holds cron schedules / Planification des tâches cron
type JobsConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	TokenPurge       string `mapstructure:"token_purge"`
	AbonnementExpiry string `mapstructure:"abonnement_expiry"`
	Backup           string `mapstructure:"backup"`
	DBStats          string `mapstructure:"db_stats"`
}

// WebsocketConfig holds change feed settings / Paramètres du flux de changements
type WebsocketConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BufferSize   int           `mapstructure:"buffer_size"` // Pending events per client before it is dropped
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// AccountingConfig holds journal settings / Paramètres des écritures
type AccountingConfig struct {
	Decimals int32 `mapstructure:"decimals"` // 0 for FCFA
}

// IsProduction checks if environment is production / Vérifie si l'environnement est production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsProd is alias for IsProduction / Alias pour IsProduction
func (c *Config) IsProd() bool {
	return c.IsProduction()
}

// IsDevelopment checks if environment is development / Vérifie si l'environnement est development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsDev is alias for IsDevelopment / Alias pour IsDevelopment
func (c *Config) IsDev() bool {
	return c.IsDevelopment()
}

// DefaultJWTSecret is the development secret refused in production
const DefaultJWTSecret = "dev-only-secret-change-me-0123456789abcdef"

// defaults apply when neither config.yaml nor the environment set a key
var defaults = map[string]any{
	"environment": "development",

	"server.port":          "8080",
	"server.read_timeout":  "10s",
	"server.write_timeout": "60s",
	"server.idle_timeout":  "120s",
	"server.frontend_url":  "http://localhost:5173",

	"database.type":            "sqlite",
	"database.dsn":             "peages.db",
	"database.migrations_path": "",

	"backup.enabled":        false,
	"backup.path":           "./backups",
	"backup.retention_days": 7,

	"auth.jwt_secret":             DefaultJWTSecret,
	"auth.access_token_duration":  "15m",
	"auth.refresh_token_duration": "720h",
	"auth.cookie_domain":          "localhost",
	"auth.cookie_path":            "/",
	"auth.cookie_secure":          false,

	"security.max_failed_attempts": 5,
	"security.lockout_duration":    "15m",
	"security.bcrypt_cost":         12,
	// proxy headers are ignored unless a proxy is listed
	"security.trusted_proxies":    []string{},
	"security.invitation_ttl":     "72h",
	"security.password_reset_ttl": "1h",

	"cors.allowed_origins": []string{"http://localhost:5173"},

	"rate_limiter.enabled": true,
	"rate_limiter.rps":     10,
	"rate_limiter.burst":   20,

	"smtp.host":     "localhost",
	"smtp.port":     1025,
	"smtp.username": "",
	"smtp.password": "",
	"smtp.from":     "no-reply@peages.local",

	"logging.level":           "info",
	"logging.format":          "text",
	"logging.loki_enabled":    false,
	"logging.loki_url":        "http://localhost:3100",
	"logging.loki_labels":     map[string]string{"app": "gestion-peages"},
	"logging.loki_batch_size": 10,

	"redis.enabled":        false,
	"redis.addr":           "localhost:6379",
	"redis.db":             0,
	"redis.permission_ttl": "5m",

	"jobs.enabled":           true,
	"jobs.token_purge":       "@daily",
	"jobs.abonnement_expiry": "5 0 * * *",
	"jobs.backup":            "@daily",
	"jobs.db_stats":          "@every 1m",

	"websocket.enabled":       true,
	"websocket.buffer_size":   32,
	"websocket.ping_interval": "30s",

	"accounting.decimals": 0,
}

// legacyEnv maps keys to unprefixed variables kept for deployment scripts
var legacyEnv = map[string]string{
	"auth.jwt_secret": "JWT_SECRET",
	"database.dsn":    "DATABASE_DSN",
	"smtp.username":   "SMTP_USERNAME",
	"smtp.password":   "SMTP_PASSWORD",
	"redis.password":  "REDIS_PASSWORD",
}

// LoadConfig loads configuration from YAML and env vars / Charge la config depuis YAML et variables d'env
// Precedence: PEAGES_* variables, then .env, then config.yaml, then defaults.
func LoadConfig() (*Config, error) {
	// .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gestion-peages")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	var cfg Config
	err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			// PEAGES_CORS_ALLOWED_ORIGINS=https://a,https://b
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Logging.LokiLabels == nil {
		cfg.Logging.LokiLabels = map[string]string{}
	}
	if _, ok := cfg.Logging.LokiLabels["environment"]; !ok {
		cfg.Logging.LokiLabels["environment"] = cfg.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once / Signale tous les paramètres invalides d'un coup
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateAuth,
		c.validateSecurity,
		c.validateRateLimiter,
		c.validateLogging,
		c.validateRedis,
		c.validateJobs,
		c.validateWebsocket,
		c.validateAccounting,
	}
	var errs []error
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch strings.ToLower(c.Database.Type) {
	case "", "sqlite", "sqlite3", "mysql", "mariadb", "postgres", "postgresql", "pg":
	default:
		return fmt.Errorf("database.type %q must be one of: sqlite, mysql, postgres", c.Database.Type)
	}
	if c.IsProduction() && c.Database.DSN == "" {
		return errors.New("database.dsn is required in production")
	}
	if c.Backup.Enabled && c.Backup.RetentionDays < 1 {
		return errors.New("backup.retention_days must be at least 1")
	}
	return nil
}

func (c *Config) validateAuth() error {
	var errs []error
	// the token signer refuses anything shorter
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("auth.jwt_secret cannot use the default value in production, set JWT_SECRET"))
	}
	if c.Auth.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("auth.access_token_duration must be positive"))
	}
	if c.Auth.RefreshTokenDuration <= c.Auth.AccessTokenDuration {
		errs = append(errs, errors.New("auth.refresh_token_duration must exceed the access token duration"))
	}
	if c.IsProduction() && !c.Auth.CookieSecure {
		errs = append(errs, errors.New("auth.cookie_secure must be true in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateSecurity() error {
	if c.Security.MaxFailedAttempts < 0 {
		return errors.New("security.max_failed_attempts cannot be negative")
	}
	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31) {
		return errors.New("security.bcrypt_cost must be between 4 and 31")
	}
	// credentials are sent cross-origin, a wildcard would leak them
	if c.IsProduction() && slices.Contains(c.Cors.AllowedOrigins, "*") {
		return errors.New("cors.allowed_origins cannot contain * in production")
	}
	return nil
}

func (c *Config) validateRateLimiter() error {
	if !c.RateLimiter.Enabled {
		return nil
	}
	if c.RateLimiter.RPS <= 0 {
		return errors.New("rate_limiter.rps must be positive when enabled")
	}
	if c.RateLimiter.Burst <= 0 {
		return errors.New("rate_limiter.burst must be positive when enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	if c.Logging.LokiEnabled && c.Logging.LokiURL == "" {
		return errors.New("logging.loki_url is required when loki is enabled")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

// validateJobs parses schedules with the scheduler's own parser
func (c *Config) validateJobs() error {
	if !c.Jobs.Enabled {
		return nil
	}
	specs := map[string]string{
		"jobs.token_purge":       c.Jobs.TokenPurge,
		"jobs.abonnement_expiry": c.Jobs.AbonnementExpiry,
		"jobs.backup":            c.Jobs.Backup,
		"jobs.db_stats":          c.Jobs.DBStats,
	}
	var errs []error
	for key, spec := range specs {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid schedule %q: %w", key, spec, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateWebsocket() error {
	if c.Websocket.Enabled && c.Websocket.BufferSize <= 0 {
		return errors.New("websocket.buffer_size must be positive when enabled")
	}
	return nil
}

func (c *Config) validateAccounting() error {
	if c.Accounting.Decimals < 0 || c.Accounting.Decimals > 4 {
		return errors.New("accounting.decimals must be between 0 and 4")
	}
	return nil
}
