package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storefront/identity-service/internal/infrastructure/config"
	"github.com/storefront/identity-service/pkg/logger"
)

const serviceName = "identity-service"

var rootCmd = &cobra.Command{
	Use:           "identity",
	Short:         "Storefront identity service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line. It exits the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and initialises the process logger.
// Commands read the logger back with logger.Get.
func bootstrap(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})
	return cfg, nil
}
