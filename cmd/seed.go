package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storefront/identity-service/internal/app"
	"github.com/storefront/identity-service/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the baseline roles and the configured administrator, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		log := logger.Get()

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer func() { _ = a.Close(context.Background()) }()

		if err := a.Seed(cmd.Context()); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info().Msg("seeding complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
