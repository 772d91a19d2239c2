// Package app assembles the identity service from its configuration: the
// credential store selected by STORE_DRIVER, the optional Redis login
// throttle, the token issuer, the services and the audit dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/storefront/identity-service/internal/api"
	"github.com/storefront/identity-service/internal/api/handler"
	"github.com/storefront/identity-service/internal/core/ports"
	"github.com/storefront/identity-service/internal/core/service"
	"github.com/storefront/identity-service/internal/infrastructure/config"
	"github.com/storefront/identity-service/internal/infrastructure/db/memory"
	mongodb "github.com/storefront/identity-service/internal/infrastructure/db/mongo"
	"github.com/storefront/identity-service/internal/infrastructure/db/postgres"
	redisdb "github.com/storefront/identity-service/internal/infrastructure/db/redis"
	"github.com/storefront/identity-service/internal/infrastructure/queue"
	"github.com/storefront/identity-service/internal/infrastructure/security"
)

// App holds the wired components. Build it with New and release it with Close.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	Store     ports.CredentialStore
	Audit     ports.AuditRepository
	Issuer    *service.TokenIssuer
	Auth      *service.AuthService
	RoleAdmin ports.RoleAdministrator
	Seeder    *service.Seeder

	dispatcher *queue.Dispatcher
	checks     map[string]handler.Checker
	closers    []func(context.Context) error
}

// New connects to the configured backends and wires the services. The audit
// dispatcher is started; Close drains it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		log:    log,
		checks: make(map[string]handler.Checker),
	}

	if err := a.openStore(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.checks["store"] = a.Store.Ping

	var throttle ports.LoginThrottle
	if cfg.Redis.Enabled {
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		throttle = redisdb.NewLoginThrottle(client, cfg.Login.MaxAttempts, cfg.Login.LockoutWindow)
	}

	issuer, err := service.NewTokenIssuer(a.Store, service.TokenConfig{
		SecurityKey: cfg.JWT.SecurityKey,
		Issuer:      cfg.JWT.Issuer,
		Audience:    cfg.JWT.Audience,
		ExpiryDays:  cfg.JWT.ExpiryDays,
	}, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Issuer = issuer

	hasher := security.NewBcryptHasher(cfg.Identity.BcryptCost)
	a.Auth = service.NewAuthService(a.Store, hasher, issuer, throttle, cfg.PasswordPolicy(), log)
	a.Seeder = service.NewSeeder(a.Store, hasher, log)

	a.dispatcher = queue.NewDispatcher(cfg.Audit.Workers, a.Audit, log)
	a.dispatcher.Start(ctx)
	a.RoleAdmin = service.NewRoleAdminService(a.Store, a.Audit, a.dispatcher, log)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      a.cfg.Mongo.URI,
			Database: a.cfg.Mongo.Database,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		a.Store = mongodb.NewCredentialStore(db)
		a.Audit = mongodb.NewAuditRepository(db)

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:          a.cfg.Postgres.DSN,
			MaxOpenConns: a.cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if a.cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(db); err != nil {
				return err
			}
		}
		a.Store = postgres.NewCredentialStore(db)
		a.Audit = postgres.NewAuditRepository(db)

	case config.DriverMemory:
		a.log.Warn().Msg("using the in-memory credential store, data is lost on restart")
		a.Store = memory.NewCredentialStore()
		a.Audit = memory.NewAuditRepository()

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
	}

	a.log.Info().Str("driver", a.cfg.StoreDriver).Msg("credential store ready")
	return nil
}

// Seed creates the baseline roles and the configured administrator.
func (a *App) Seed(ctx context.Context) error {
	return a.Seeder.Run(ctx, service.AdminSeed{
		Username:  a.cfg.Seed.AdminUsername,
		Password:  a.cfg.Seed.AdminPassword,
		Email:     a.cfg.Seed.AdminEmail,
		FirstName: a.cfg.Seed.AdminFirstName,
		LastName:  a.cfg.Seed.AdminLastName,
	})
}

// Router builds the HTTP handler for the wired services.
func (a *App) Router() *echo.Echo {
	return api.NewRouter(api.Dependencies{
		Auth:      a.Auth,
		RoleAdmin: a.RoleAdmin,
		Verifier:  a.Issuer,
		Checks:    a.checks,
		Logger:    a.log,
		Swagger:   !a.cfg.IsProduction(),
	})
}

// Close drains the audit dispatcher and then releases the backend
// connections in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("audit drain: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
