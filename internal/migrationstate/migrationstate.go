// Package migrationstate provides the StateStore facade used by the
// migration manager to read and write migration state records.
package migrationstate

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sigilindex/migrator/internal/migrationstate/driver"
	"github.com/sigilindex/migrator/internal/migrationstate/memmigrationstate"
	"github.com/sigilindex/migrator/internal/migrationstate/pgmigrationstate"
)

// Type aliases re-exported from driver.
type StateStore = driver.StateStore
type Record = driver.Record

// New creates a PostgreSQL-backed StateStore against tableName. Callers
// must call pgmigrationstate.EnsureSchema once beforehand.
func New(db *pgxpool.Pool, tableName string) StateStore {
	return pgmigrationstate.New(db, tableName)
}

// NewMemStateStore creates an in-memory StateStore, for tests.
func NewMemStateStore() StateStore {
	return memmigrationstate.New()
}
