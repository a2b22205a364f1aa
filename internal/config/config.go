// Package config provides configuration loading for the migration CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	Namespace = "Migrate"

	DefaultStateIndexName    = "migrations"
	DefaultAcquireTimeout    = time.Minute
	DefaultRunLeaseTimeout   = 30 * time.Minute
	DefaultCreateLeaseTimeout = time.Minute
)

func getConfigLocations() []string {
	return []string{
		".env",
		".migrate.yaml",
		"config/migrate.yaml",
		"/config/migrate.yaml",
		"/config/migrate/.env",
	}
}

// Config is the top-level configuration for the migrate CLI and its
// collaborators. None of this is consulted by the core packages
// (migration, migrationstate, migrationlock, migrationmanager) — they are
// constructed explicitly by the CLI from the values below.
type Config struct {
	validated  bool
	configPath string

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" desc:"Verbosity of CLI logs: 'debug', 'info', 'warn', 'error'." required:"N"`

	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Migrate  MigrateConfig  `yaml:"migrate"`
}

// PostgresConfig configures the jsonb-document backed index store.
type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL" desc:"Connection URL for PostgreSQL, used to host the migration state index and any document indices migrations operate on." required:"Y"`
}

// RedisConfig configures the distributed lock provider.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" desc:"Redis server hostname." required:"N"`
	Port     int    `yaml:"port" env:"REDIS_PORT" desc:"Redis server port." required:"N"`
	Username string `yaml:"username" env:"REDIS_USERNAME" desc:"Redis username, if ACLs are enabled." required:"N"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" desc:"Redis password." required:"N"`
	Database int    `yaml:"database" env:"REDIS_DATABASE" desc:"Redis logical database index." required:"N"`
	TLS      bool   `yaml:"tls" env:"REDIS_TLS_ENABLED" desc:"Enable TLS for the Redis connection." required:"N"`
}

// MigrateConfig configures the migration manager's lock discipline and the
// name of the dedicated state index.
type MigrateConfig struct {
	StateIndexName    string        `yaml:"state_index_name" env:"MIGRATE_STATE_INDEX_NAME" desc:"Name of the dedicated index hosting migration state records." required:"N"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout" env:"MIGRATE_ACQUIRE_TIMEOUT" desc:"How long to wait to acquire the global migration lock before failing." required:"N"`
	RunLeaseTimeout   time.Duration `yaml:"run_lease_timeout" env:"MIGRATE_RUN_LEASE_TIMEOUT" desc:"Upper bound on how long a single 'run' invocation may hold the migration lock." required:"N"`
	CreateLeaseTimeout time.Duration `yaml:"create_lease_timeout" env:"MIGRATE_CREATE_LEASE_TIMEOUT" desc:"Upper bound on how long the state-index bootstrap path may hold its create-index lock." required:"N"`
}

var (
	ErrMissingPostgresURL = errors.New("config validation error: postgres.url is required")
	ErrInvalidLogLevel    = errors.New("config validation error: invalid log level")
)

// New creates a Config with sensible defaults, then loads one optional config
// file (configPathOverride, or else the first of getConfigLocations() that
// exists; a .env file is loaded into the environment, anything else is read
// as YAML), then applies environment variables on top. CLI flags are not
// handled here: the caller overrides the returned fields directly.
func New(configPathOverride string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Migrate: MigrateConfig{
			StateIndexName:     DefaultStateIndexName,
			AcquireTimeout:     DefaultAcquireTimeout,
			RunLeaseTimeout:    DefaultRunLeaseTimeout,
			CreateLeaseTimeout: DefaultCreateLeaseTimeout,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
	}

	path := configPathOverride
	if path == "" {
		for _, candidate := range getConfigLocations() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.configPath = path
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if isDotEnv(path) {
		return godotenv.Load(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func isDotEnv(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".env"
}

// Validate ensures the configuration is usable. It must be called before the
// CLI wires any collaborators.
func (c *Config) Validate() error {
	if c.Postgres.URL == "" {
		return ErrMissingPostgresURL
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	c.validated = true
	return nil
}
