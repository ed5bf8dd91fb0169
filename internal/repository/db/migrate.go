package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/open-tech-stack/mitic-web-sub002/migrations"
)

// migrationsTable keeps the version bookkeeping apart from domain tables
const migrationsTable = "schema_migrations"

// migrationDriver wraps an open pool for golang-migrate / Enveloppe un pool ouvert pour golang-migrate
type migrationDriver struct {
	name string
	wrap func(*sql.DB) (database.Driver, error)
}

var migrationDrivers = map[DatabaseType]migrationDriver{
	SQLite: {"sqlite", func(db *sql.DB) (database.Driver, error) {
		return sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	}},
	MySQL: {"mysql", func(db *sql.DB) (database.Driver, error) {
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	}},
	PostgreSQL: {"postgres", func(db *sql.DB) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	}},
}

// Migrator applies schema migrations for one database / Applique les migrations d'une base
type Migrator struct {
	m      *migrate.Migrate
	dbType DatabaseType
}

// NewMigrator builds migrator from a directory or the embedded files when path is empty
// NewMigrator construit le migrateur depuis un répertoire ou les fichiers embarqués si path est vide
func NewMigrator(sqlDB *sql.DB, dbType DatabaseType, path string) (*Migrator, error) {
	drv, ok := migrationDrivers[dbType]
	if !ok {
		return nil, fmt.Errorf("unsupported database type for migrations: %s", dbType)
	}
	target, err := drv.wrap(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("could not create %s migration driver: %w", dbType, err)
	}

	var m *migrate.Migrate
	if path != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+path, drv.name, target)
	} else {
		var src source.Driver
		src, err = iofs.New(migrations.FS, string(dbType))
		if err != nil {
			return nil, fmt.Errorf("could not open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, drv.name, target)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	return &Migrator{m: m, dbType: dbType}, nil
}

// Up applies pending migrations / Applique les migrations en attente
func (mg *Migrator) Up() error {
	before, _, _ := mg.Version()
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	after, _, _ := mg.Version()
	if after != before {
		slog.Info("database migrated", "type", mg.dbType, "from", before, "to", after)
	}
	return nil
}

// Down reverts the given number of migrations, at least one
// Down annule le nombre de migrations donné, au moins une
func (mg *Migrator) Down(steps int) error {
	if err := mg.m.Steps(-max(steps, 1)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration rollback failed: %w", err)
	}
	return nil
}

// Version returns current schema version, 0 before the first migration
// Version retourne la version du schéma, 0 avant la première migration
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrateLogger routes golang-migrate output to slog / Redirige la sortie de golang-migrate vers slog
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Debug("migrate: " + fmt.Sprintf(format, v...))
}

func (migrateLogger) Verbose() bool { return false }
