// Command peagesctl runs maintenance tasks against the toll back-office database.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/logging"
	"github.com/open-tech-stack/mitic-web-sub002/internal/transport/web"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand / Options communes à toutes les sous-commandes
type globalOptions struct {
	dsn     string
	dbType  string
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:     "peagesctl",
		Short:   "Administration de la base Gestion Péages",
		Version: web.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "database DSN (overrides PEAGES_DATABASE_DSN)")
	root.PersistentFlags().StringVar(&opts.dbType, "db-type", "", "database type: sqlite, postgres or mysql")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCommand(opts),
		newCreateAdminCommand(opts),
		newSeedCommand(opts),
		newPcgCommand(opts),
	)
	return root
}

// load reads configuration and applies command line overrides
// load lit la configuration et applique les surcharges de la ligne de commande
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.dbType != "" {
		cfg.Database.Type = o.dbType
	}
	// the CLI never schedules anything
	cfg.Jobs.Enabled = false
	cfg.Logging.LokiEnabled = false
	cfg.Logging.Format = "text"
	if o.verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}

	logger, _ := logging.New(cfg.Logging, false, os.Stderr)
	slog.SetDefault(logger)
	return cfg, nil
}

// container opens the database with migrations applied / Ouvre la base avec les migrations appliquées
func (o *globalOptions) container() (*app.Container, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return app.NewContainer(cfg)
}
