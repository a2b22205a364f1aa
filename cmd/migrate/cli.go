package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationmanager"
)

// NewCommand builds the migrate CLI command tree.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run and inspect registered migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("CONFIG"),
			},
			&cli.StringFlag{
				Name:    "postgres-url",
				Usage:   "PostgreSQL connection URL (overrides config)",
				Sources: cli.EnvVars("POSTGRES_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-host",
				Usage:   "Redis server hostname (overrides config)",
				Sources: cli.EnvVars("REDIS_HOST"),
			},
			&cli.IntFlag{
				Name:    "redis-port",
				Usage:   "Redis server port (overrides config)",
				Sources: cli.EnvVars("REDIS_PORT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Report which migrations are pending",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "current",
						Usage: "Exit with code 1 if migrations are pending, for scripting",
					},
				},
				Action: runStatus,
			},
			{
				Name:   "run",
				Usage:  "Execute every pending migration in order",
				Action: runRun,
			},
			{
				Name:   "list",
				Usage:  "List every registered migration and its identity",
				Action: runList,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return cli.ShowAppHelp(c)
		},
	}
}

func runStatus(ctx context.Context, c *cli.Command) error {
	d, err := wireDeps(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	status, err := d.manager.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Current version: %d\n", status.CurrentVersion)
	fmt.Printf("Pending migrations: %d\n", len(status.PendingMigrations))
	for _, mig := range status.PendingMigrations {
		fmt.Printf("  %s (%s)\n", migration.Identity(mig), mig.Type())
	}

	if c.Bool("current") && status.NeedsMigration {
		os.Exit(1)
	}
	return nil
}

func runRun(ctx context.Context, c *cli.Command) error {
	d, err := wireDeps(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.manager.EnsureStateIndex(ctx); err != nil {
		return err
	}

	result, err := d.manager.RunMigrationsAsync(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Migration run result: %s\n", result)
	if result != migrationmanager.Success {
		os.Exit(1)
	}
	return nil
}

func runList(ctx context.Context, c *cli.Command) error {
	d, err := wireDeps(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Println("Registered migrations:")
	for _, mig := range d.manager.RegisteredMigrations() {
		fmt.Printf("  %s (%s)\n", describeIdentity(mig), mig.Type())
	}
	return nil
}

// describeIdentity is a nil-safe variant of migration.Identity: a
// Versioned/VersionedAndResumable migration registered with a nil Version is
// a legal, merely-ignored registration (resolved at status time, not
// registration time), so listing must not dereference it.
func describeIdentity(mig migration.Migration) string {
	if mig.Type() != migration.Repeatable && mig.Version() == nil {
		return fmt.Sprintf("%s (unversioned, ignored)", mig.FullName())
	}
	return migration.Identity(mig)
}
