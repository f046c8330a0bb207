package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`     // json or text
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
	State      StateConfig
	Catalog    CatalogConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// GrpcServerConfig holds the port of the gRPC health endpoint.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host         string        `envconfig:"POSTGRES_HOST" required:"true"`
	Port         string        `envconfig:"POSTGRES_PORT" default:"5432"`
	User         string        `envconfig:"POSTGRES_USER" required:"true"`
	Password     string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName       string        `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode      string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLife  time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// AuthConfig holds what is needed to read identities out of bearer tokens
// issued by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	AdminRole string `envconfig:"AUTH_ADMIN_ROLE" default:"admin"`
}

// StateConfig controls the per-device state kept by the service.
type StateConfig struct {
	Dir     string        `envconfig:"STATE_DIR" default:"./var/state"`
	IdleTTL time.Duration `envconfig:"STATE_IDLE_TTL" default:"2h"`
	Sweep   time.Duration `envconfig:"STATE_SWEEP_INTERVAL" default:"5m"`
}

// CatalogConfig holds storefront catalog defaults.
type CatalogConfig struct {
	DefaultMaxPrice int64 `envconfig:"CATALOG_DEFAULT_MAX_PRICE" default:"5000"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %s", cfg.LogFormat)
	}
	if cfg.Catalog.DefaultMaxPrice <= 0 {
		return nil, fmt.Errorf("CATALOG_DEFAULT_MAX_PRICE must be positive, got %d", cfg.Catalog.DefaultMaxPrice)
	}
	return &cfg, nil
}
