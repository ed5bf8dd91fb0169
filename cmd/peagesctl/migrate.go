package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Gère les migrations du schéma",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Applique les migrations en attente",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *db.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Annule les dernières migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *db.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Affiche la version du schéma",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *db.Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

// withMigrator opens a raw connection, since the container would migrate up on its own
// withMigrator ouvre une connexion brute, le conteneur migrerait de lui-même
func withMigrator(opts *globalOptions, fn func(*db.Migrator) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	sqlDB, dbType, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	m, err := db.NewMigrator(sqlDB, dbType, cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	return fn(m)
}

func openDatabase(cfg *config.Config) (*sql.DB, db.DatabaseType, error) {
	dbType := db.ParseType(cfg.Database.Type)
	sqlDB, err := db.Open(context.Background(), db.DatabaseConfig{
		Type:         dbType,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("opening %s database: %w", dbType, err)
	}
	return sqlDB, dbType, nil
}

func printVersion(cmd *cobra.Command, m *db.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
