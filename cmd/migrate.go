package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compace/hygiene/internal/config"
	"github.com/compace/hygiene/internal/migrate"
	"github.com/compace/hygiene/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DB.DSN == "" {
				return fmt.Errorf("db.dsn is required for migrate")
			}

			pool, err := postgres.Connect(cmd.Context(), postgres.Config{
				DSN:      cfg.DB.DSN,
				MaxConns: cfg.DB.MaxConns,
				MinConns: cfg.DB.MinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrate.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
