package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/storefront/identity-service/internal/app"
	"github.com/storefront/identity-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Seed the baseline roles and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		log := logger.Get()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if err := a.Seed(ctx); err != nil {
			_ = a.Close(context.Background())
			return fmt.Errorf("seed: %w", err)
		}

		e := a.Router()
		e.Server.ReadTimeout = 15 * time.Second
		e.Server.WriteTimeout = 15 * time.Second
		e.Server.IdleTimeout = 60 * time.Second

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
			if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("http server failed")
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		log.Info().Msg("server stopped")
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
