package migrationmanager

import "github.com/sigilindex/migrator/internal/migration"

// Status is the ephemeral result of a status query: which registered
// migrations still need to run, whether any do, and the highest
// successfully completed Versioned/VersionedAndResumable version.
type Status struct {
	PendingMigrations []migration.Migration
	NeedsMigration    bool
	CurrentVersion    int
}

// Result is the outcome of a RunMigrationsAsync call. There is no partial
// result: a run aggregates over every migration it attempted.
type Result string

const (
	Success Result = "success"
	Failed  Result = "failed"
)
