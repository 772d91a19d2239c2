package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/storefront/identity-service/internal/infrastructure/config"
	"github.com/storefront/identity-service/internal/infrastructure/db/postgres"
	"github.com/storefront/identity-service/pkg/logger"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations to the Postgres credential store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		log := logger.Get()
		if cfg.StoreDriver != config.DriverPostgres {
			return errors.New("migrate up requires STORE_DRIVER=postgres")
		}

		db, err := postgres.Open(cmd.Context(), postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := postgres.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
}
