package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // registers "sqlite"
)

// DatabaseConfig holds database connection config / Contient la config de connexion BD
type DatabaseConfig struct {
	Type         DatabaseType
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// connector knows how to open one database flavour / Sait ouvrir un type de base
type connector struct {
	driver string
	// dsn normalizes the configured DSN so every pooled connection gets the same session settings
	dsn     func(string) (string, error)
	maxOpen int
	// setup runs once per database, not per connection
	setup []string
}

var connectors = map[DatabaseType]connector{
	SQLite: {
		driver:  "sqlite",
		dsn:     func(dsn string) (string, error) { return SQLiteDSN(dsn), nil },
		maxOpen: 25,
		setup: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA wal_autocheckpoint=1000",
		},
	},
	MySQL: {
		driver:  "mysql",
		dsn:     mysqlDSN,
		maxOpen: 25,
	},
	PostgreSQL: {
		driver:  "postgres",
		dsn:     postgresDSN,
		maxOpen: 25,
	},
}

// Open connects, applies pool limits and checks the connection
// Open se connecte, applique les limites du pool et vérifie la connexion
func Open(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	conn, ok := connectors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	dsn, err := conn.dsn(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid %s dsn: %w", cfg.Type, err)
	}
	db, err := sql.Open(conn.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}

	maxOpen := conn.maxOpen
	if cfg.MaxOpenConns > 0 {
		maxOpen = cfg.MaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = min(5, maxOpen)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Type, err)
	}

	for _, stmt := range conn.setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			slog.Warn("database setup statement failed", "type", cfg.Type, "stmt", stmt, "err", err)
		}
	}

	slog.Info("database connected", "type", cfg.Type, "max_open", maxOpen)
	return db, nil
}

// SQLiteDSN adds per-connection pragmas (foreign keys, busy timeout) to a modernc DSN
// SQLiteDSN ajoute les pragmas par connexion (clés étrangères, busy timeout) au DSN modernc
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=trusted_schema(0)&_time_format=sqlite"
}

// mysqlDSN forces UTC time parsing and strict mode, migrations need multi statements
// mysqlDSN force le parsing des dates en UTC et le mode strict, les migrations exigent multiStatements
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["sql_mode"]; !ok {
		cfg.Params["sql_mode"] = "'TRADITIONAL,NO_AUTO_VALUE_ON_ZERO'"
	}
	return cfg.FormatDSN(), nil
}

// postgresDSN accepts URL or key=value form and pins the session time zone
// postgresDSN accepte la forme URL ou clé=valeur et fixe le fuseau de session
func postgresDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		kv, err := pq.ParseURL(dsn)
		if err != nil {
			return "", err
		}
		dsn = kv
	}
	if strings.Contains(dsn, "timezone=") {
		return dsn, nil
	}
	return strings.TrimSpace(dsn + " timezone=UTC"), nil
}
