package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported values of STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // e.g., debug, info, warn, error
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`     // json or text
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Analytics  AnalyticsConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port           string        `envconfig:"GRPC_SERVER_PORT" default:"9090"`
	HealthInterval time.Duration `envconfig:"GRPC_HEALTH_INTERVAL" default:"10s"`
}

// StoreConfig selects the Catalog Store backend.
// OpTimeout bounds the setup and teardown calls made from main: the Postgres
// connect ping, index or schema creation, and Close. Request-path store calls
// inherit the request context, which HTTP_REQUEST_TIMEOUT bounds.
type StoreConfig struct {
	Driver    string        `envconfig:"STORE_DRIVER" default:"memory"`
	OpTimeout time.Duration `envconfig:"STORE_OP_TIMEOUT" default:"5s"`
}

// MongoConfig holds MongoDB connection details.
type MongoConfig struct {
	URI            string        `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	Database       string        `envconfig:"MONGODB_DB" default:"ecommerce_db"`
	ConnectTimeout time.Duration `envconfig:"MONGODB_CONNECT_TIMEOUT" default:"10s"`
}

// PostgresConfig holds PostgreSQL database connection details.
// Host, user and database name are only required with the postgres driver.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// AnalyticsConfig sizes the detached hit dispatcher.
type AnalyticsConfig struct {
	Workers      int           `envconfig:"ANALYTICS_WORKERS" default:"4"`
	QueueSize    int           `envconfig:"ANALYTICS_QUEUE_SIZE" default:"1024"`
	WriteTimeout time.Duration `envconfig:"ANALYTICS_WRITE_TIMEOUT" default:"5s"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// Validate checks the settings envconfig cannot express with tags.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverMongo:
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("POSTGRES_HOST, POSTGRES_USER and POSTGRES_DBNAME are required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	if c.Analytics.Workers < 1 {
		errs = append(errs, errors.New("ANALYTICS_WORKERS must be positive"))
	}
	if c.Analytics.QueueSize < 1 {
		errs = append(errs, errors.New("ANALYTICS_QUEUE_SIZE must be positive"))
	}
	if c.Store.OpTimeout <= 0 {
		errs = append(errs, errors.New("STORE_OP_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv processes the environment into a validated Config.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil { // no prefix
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
