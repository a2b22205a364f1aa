package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v3"

	"github.com/sigilindex/migrator/internal/config"
	"github.com/sigilindex/migrator/internal/examplemigrations"
	"github.com/sigilindex/migrator/internal/indexstore"
	"github.com/sigilindex/migrator/internal/logging"
	"github.com/sigilindex/migrator/internal/migrationlock"
	"github.com/sigilindex/migrator/internal/migrationmanager"
	"github.com/sigilindex/migrator/internal/migrationstate"
	"github.com/sigilindex/migrator/internal/migrationstate/pgmigrationstate"
	"github.com/sigilindex/migrator/internal/redis"
)

const stateTableName = "migration_state"

// deps holds every collaborator wired from configuration, closed together
// once the command's action returns.
type deps struct {
	cfg     *config.Config
	logger  *logging.Logger
	db      *pgxpool.Pool
	redis   redis.Client
	manager *migrationmanager.Manager
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.New(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if url := c.String("postgres-url"); url != "" {
		cfg.Postgres.URL = url
	}
	if host := c.String("redis-host"); host != "" {
		cfg.Redis.Host = host
	}
	if c.IsSet("redis-port") {
		cfg.Redis.Port = c.Int("redis-port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// wireDeps loads configuration and constructs every collaborator the
// manager needs, registering the bundled example migrations. Callers must
// call Close() once done.
func wireDeps(ctx context.Context, c *cli.Command) (*deps, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(logging.WithLogLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pgmigrationstate.EnsureSchema(ctx, db, stateTableName); err != nil {
		db.Close()
		return nil, err
	}

	redisClient, err := redis.NewClient(ctx, &redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.Database,
		TLS:      cfg.Redis.TLS,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	stateStore := migrationstate.New(db, stateTableName)
	indexBackend := indexstore.New(db)
	lock := migrationlock.New(redisClient)

	manager := migrationmanager.New(migrationmanager.Config{
		StateStore:         stateStore,
		IndexBackend:       indexBackend,
		Lock:               lock,
		Logger:             logger,
		StateIndexName:     cfg.Migrate.StateIndexName,
		AcquireTimeout:     cfg.Migrate.AcquireTimeout,
		RunLeaseTimeout:    cfg.Migrate.RunLeaseTimeout,
		CreateLeaseTimeout: cfg.Migrate.CreateLeaseTimeout,
	})

	if err := registerBundledMigrations(manager, indexBackend); err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	return &deps{cfg: cfg, logger: logger, db: db, redis: redisClient, manager: manager}, nil
}

func registerBundledMigrations(manager *migrationmanager.Manager, indexBackend indexstore.Backend) error {
	if err := manager.Register(examplemigrations.NewCreateDocumentsIndex(indexBackend)); err != nil {
		return err
	}
	if err := manager.Register(examplemigrations.NewBackfillDocumentTimestamps(indexBackend)); err != nil {
		return err
	}
	return nil
}

func (d *deps) Close() {
	d.redis.Close()
	d.db.Close()
}
