package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/storefront/identity-service/internal/core/domain"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT,         default=8080"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	JWT      JWTConfig
	Identity IdentityConfig
	Login    LoginConfig
	Seed     SeedConfig
	Audit    AuditConfig

	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type JWTConfig struct {
	SecurityKey string `env:"JWT_SECURITY_KEY, required"`
	Issuer      string `env:"JWT_ISSUER,       default=storefront-identity"`
	Audience    string `env:"JWT_AUDIENCE,     default=storefront"`
	ExpiryDays  int    `env:"JWT_EXPIRY_DAYS,  default=7"`
}

// IdentityConfig holds the password complexity rules.
type IdentityConfig struct {
	RequiredLength         int  `env:"IDENTITY_REQUIRED_LENGTH,          default=6"`
	RequireDigit           bool `env:"IDENTITY_REQUIRE_DIGIT,            default=true"`
	RequireLowercase       bool `env:"IDENTITY_REQUIRE_LOWERCASE,        default=true"`
	RequireUppercase       bool `env:"IDENTITY_REQUIRE_UPPERCASE,        default=true"`
	RequireNonAlphanumeric bool `env:"IDENTITY_REQUIRE_NON_ALPHANUMERIC, default=true"`
	BcryptCost             int  `env:"IDENTITY_BCRYPT_COST,              default=10"`
}

type LoginConfig struct {
	MaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS,   default=5"`
	LockoutWindow time.Duration `env:"LOGIN_LOCKOUT_WINDOW, default=15m"`
}

// SeedConfig describes the optional administrator created at startup.
type SeedConfig struct {
	AdminUsername  string `env:"SEED_ADMIN_USERNAME"`
	AdminPassword  string `env:"SEED_ADMIN_PASSWORD"`
	AdminEmail     string `env:"SEED_ADMIN_EMAIL"`
	AdminFirstName string `env:"SEED_ADMIN_FIRST_NAME"`
	AdminLastName  string `env:"SEED_ADMIN_LAST_NAME"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=storefront_identity"`
}

type PostgresConfig struct {
	DSN          string `env:"POSTGRES_DSN"`
	AutoMigrate  bool   `env:"POSTGRES_AUTO_MIGRATE,   default=true"`
	MaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS, default=10"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,  default=true"`
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads a .env file when one is present, then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given key/value pairs only.
func LoadFrom(ctx context.Context, env map[string]string) (*Config, error) {
	return process(ctx, envconfig.MapLookuper(env))
}

func process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMongo, DriverMemory:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWT.ExpiryDays <= 0 {
		return errors.New("JWT_EXPIRY_DAYS must be positive")
	}
	return nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PasswordPolicy converts the identity settings into the domain rule set.
func (c *Config) PasswordPolicy() domain.PasswordPolicy {
	return domain.PasswordPolicy{
		RequiredLength:         c.Identity.RequiredLength,
		RequireDigit:           c.Identity.RequireDigit,
		RequireLowercase:       c.Identity.RequireLowercase,
		RequireUppercase:       c.Identity.RequireUppercase,
		RequireNonAlphanumeric: c.Identity.RequireNonAlphanumeric,
	}
}
