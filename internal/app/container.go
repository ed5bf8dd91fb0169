package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/cache"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/events"
	"github.com/open-tech-stack/mitic-web-sub002/internal/jobs"
	"github.com/open-tech-stack/mitic-web-sub002/internal/metrics"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds application dependencies / Contient les dépendances de l'application
type Container struct {
	Config   *config.Config
	DB       *sql.DB
	Adapter  *repository.Adapter
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Hub      *events.Hub
	Cache    ports.PermissionCache
	Jobs     *jobs.Scheduler

	UserRepo          ports.UserRepository
	RefreshTokenStore ports.RefreshTokenStore

	RoleSvc        *service.RoleService
	UserSvc        *service.UserService
	AuthSvc        *service.AuthService
	PasswordSvc    *service.PasswordService
	PcgSvc         *service.PcgService
	CompteSvc      *service.CompteService
	UOSvc          *service.UOService
	PeageSvc       *service.PeageService
	PeriodiciteSvc *service.PeriodiciteService
	AbonneSvc      *service.AbonneService
	TarifSvc       *service.TarifService
	SchemaSvc      *service.SchemaService
	AbonnementSvc  *service.AbonnementService
	SessionSvc     *service.SessionCaisseService
	DashboardSvc   *service.DashboardService

	redis *redis.Client
}

// NewContainer initializes application container / Initialise le conteneur de l'application
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	// Dedicated registry so several containers can live in one process (tests)
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.NewMetrics(c.Registry)

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	if err := c.runMigrations(); err != nil {
		c.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	c.initRepositories()
	c.initInfrastructure()

	if err := c.initServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("service init: %w", err)
	}

	if err := c.initJobs(); err != nil {
		c.Close()
		return nil, fmt.Errorf("jobs init: %w", err)
	}

	c.updateDatabaseMetrics()
	return c, nil
}

func (c *Container) dbType() db.DatabaseType {
	return db.ParseType(c.Config.Database.Type)
}

// initDatabase initializes database connection / Initialise la connexion à la base de données
func (c *Container) initDatabase() error {
	dbType := c.dbType()
	database, err := db.Open(context.Background(), db.DatabaseConfig{
		Type:         dbType,
		DSN:          c.Config.Database.DSN,
		MaxOpenConns: c.Config.Database.MaxOpenConns,
		MaxIdleConns: c.Config.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize %s database: %w", dbType, err)
	}
	c.DB = database
	return nil
}

// runMigrations applies database migrations / Applique les migrations de base de données
func (c *Container) runMigrations() error {
	m, err := db.NewMigrator(c.DB, c.dbType(), c.Config.Database.MigrationsPath)
	if err != nil {
		return err
	}
	return m.Up()
}

// initRepositories initializes repositories / Initialise les repositories
func (c *Container) initRepositories() {
	c.Adapter = repository.NewAdapter(c.DB, string(c.dbType()))
	c.UserRepo = c.Adapter.UserRepository()
	c.RefreshTokenStore = c.Adapter.RefreshTokenStore()
	slog.Info("repositories initialized", "database", c.dbType())
}

// initInfrastructure sets up cache and event hub / Prépare le cache et le hub d'événements
func (c *Container) initInfrastructure() {
	c.Cache = cache.NewMemory()
	if c.Config.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, c.Config.Redis.Addr, c.Config.Redis.Password, c.Config.Redis.DB)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, using in-memory permission cache", "addr", c.Config.Redis.Addr, "err", err)
		} else {
			c.redis = client
			c.Cache = cache.NewRedis(client)
			slog.Info("permission cache backed by redis", "addr", c.Config.Redis.Addr)
		}
	}

	c.Hub = events.NewHub(c.Config.Websocket.BufferSize, c.Metrics.SetWebsocketClients)
}

// initServices initializes application services / Initialise les services applicatifs
func (c *Container) initServices() error {
	a := c.Adapter

	mailer, err := service.NewMailer(c.Config.SMTP)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	c.RoleSvc = service.NewRoleService(a.RoleRepository(), a, c.Cache, c.Config.Redis.PermissionTTL, c.Hub)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := c.RoleSvc.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if n > 0 {
		slog.Info("built-in roles created", "count", n)
	}

	c.PasswordSvc, err = service.NewPasswordService(c.UserRepo, c.RefreshTokenStore, mailer, c.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize password service: %w", err)
	}
	c.AuthSvc, err = service.NewAuthService(c.UserRepo, c.RefreshTokenStore, c.RoleSvc, c.Config, a, c.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}
	c.UserSvc = service.NewUserService(c.UserRepo, c.RefreshTokenStore, c.RoleSvc, c.PasswordSvc, c.Config, c.Hub, c.Metrics)

	c.PcgSvc = service.NewPcgService(a.PcgRepository(), a, c.Hub)
	c.UOSvc = service.NewUOService(a.UORepository(), c.Hub)
	c.CompteSvc = service.NewCompteService(a.CompteRepository(), a.PcgRepository(), a.UORepository(), c.Hub)
	c.PeageSvc = service.NewPeageService(a.PeageRepository(), a.UORepository(), c.Hub)
	c.PeriodiciteSvc = service.NewPeriodiciteService(a.PeriodiciteRepository(), c.Hub)
	c.AbonneSvc = service.NewAbonneService(a.AbonneRepository(), c.Hub)
	c.TarifSvc = service.NewTarifService(a.TarifRepository(), a.PeageRepository(), a.PeriodiciteRepository(), c.Hub)

	c.SchemaSvc = service.NewSchemaService(a.SchemaComptableRepository(), a.CompteRepository(), a.EcritureRepository(),
		a, c.Config.Accounting.Decimals, c.Hub, c.Metrics)
	c.AbonnementSvc = service.NewAbonnementService(a.AbonnementRepository(), a.AbonneRepository(), a.TarifRepository(),
		a.PeriodiciteRepository(), c.SchemaSvc, a, c.Hub, c.Metrics)
	c.SessionSvc = service.NewSessionCaisseService(a.SessionCaisseRepository(), a.PeageRepository(), c.AbonnementSvc,
		c.SchemaSvc, a, c.Hub, c.Metrics)
	c.DashboardSvc = service.NewDashboardService(a.AbonnementRepository(), a.SessionCaisseRepository(), c.UserRepo)
	return nil
}

// initJobs registers periodic maintenance / Enregistre la maintenance périodique
func (c *Container) initJobs() error {
	c.Jobs = jobs.NewScheduler(c.Metrics)
	if !c.Config.Jobs.Enabled {
		return nil
	}

	if err := c.Jobs.Add("token_purge", c.Config.Jobs.TokenPurge, c.purgeTokens); err != nil {
		return err
	}
	if err := c.Jobs.Add("abonnement_expiry", c.Config.Jobs.AbonnementExpiry, c.expireAbonnements); err != nil {
		return err
	}
	if err := c.Jobs.Add("db_stats", c.Config.Jobs.DBStats, func(context.Context) error {
		c.updateDatabaseMetrics()
		return nil
	}); err != nil {
		return err
	}

	if c.Config.Backup.Enabled {
		if c.dbType() != db.SQLite {
			slog.Warn("database backup only supported for sqlite", "type", c.dbType())
			return nil
		}
		backup := &jobs.SQLiteBackup{
			DB:            c.DB,
			DSN:           c.Config.Database.DSN,
			Dir:           c.Config.Backup.Path,
			RetentionDays: c.Config.Backup.RetentionDays,
		}
		if err := c.Jobs.Add("database_backup", c.Config.Jobs.Backup, backup.Run); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) purgeTokens(ctx context.Context) error {
	n, err := c.AuthSvc.PurgeExpiredTokens(ctx)
	if err != nil {
		return err
	}
	slog.Info("expired refresh tokens purged", "count", n)
	return nil
}

func (c *Container) expireAbonnements(ctx context.Context) error {
	n, err := c.AbonnementSvc.ExpirerEchus(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("subscriptions expired", "count", n)
	}
	return nil
}

// Start launches background jobs / Démarre les tâches de fond
func (c *Container) Start() {
	if c.Jobs != nil && c.Config.Jobs.Enabled {
		c.Jobs.Start()
	}
}

// PingCache checks the redis connection, nil when redis is not in use
// PingCache vérifie la connexion redis, nil si redis n'est pas utilisé
func (c *Container) PingCache(ctx context.Context) error {
	if c.redis == nil {
		if c.Config.Redis.Enabled {
			return errors.New("redis configured but not connected")
		}
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// updateDatabaseMetrics updates database metrics / Met à jour les métriques de la BD
func (c *Container) updateDatabaseMetrics() {
	stats := c.DB.Stats()
	c.Metrics.UpdateDatabaseConnections(stats.OpenConnections)
}

// Close performs graceful shutdown / Effectue un arrêt gracieux
func (c *Container) Close() error {
	if c.Jobs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		c.Jobs.Stop(ctx)
		cancel()
	}
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if c.DB != nil {
		slog.Info("closing database")
		return c.DB.Close()
	}
	return nil
}
