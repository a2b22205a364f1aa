// Package pgmigrationstate implements driver.StateStore against a
// PostgreSQL table, one row per migration identity.
package pgmigrationstate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationstate/driver"
)

type store struct {
	db        *pgxpool.Pool
	tableName string
}

var _ driver.StateStore = (*store)(nil)

// New creates a StateStore backed by the named table within db. The table
// is not created here; see EnsureSchema.
func New(db *pgxpool.Pool, tableName string) driver.StateStore {
	return &store{db: db, tableName: tableName}
}

// EnsureSchema creates the backing table for tableName if it does not
// already exist. It is idempotent and safe to call from multiple
// processes concurrently, and must be called before New is used against a
// fresh database.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, tableName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id             TEXT PRIMARY KEY,
			version        INTEGER NOT NULL,
			migration_type TEXT NOT NULL,
			started_utc    TIMESTAMPTZ NOT NULL,
			completed_utc  TIMESTAMPTZ,
			error_message  TEXT
		)`, pgx.Identifier{tableName}.Sanitize())
	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema for %s: %w", tableName, err)
	}
	return nil
}

func (s *store) Add(ctx context.Context, state driver.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, version, migration_type, started_utc, completed_utc, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			migration_type = EXCLUDED.migration_type,
			started_utc = EXCLUDED.started_utc,
			completed_utc = EXCLUDED.completed_utc,
			error_message = EXCLUDED.error_message
	`, pgx.Identifier{s.tableName}.Sanitize())

	_, err := s.db.Exec(ctx, query,
		state.ID, state.Version, string(state.Type), state.StartedUTC, state.CompletedUTC, state.ErrorMessage)
	if err != nil {
		return fmt.Errorf("upsert migration state %q: %w", state.ID, err)
	}
	return nil
}

func (s *store) GetAll(ctx context.Context) ([]driver.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, version, migration_type, started_utc, completed_utc, error_message
		FROM %s
	`, pgx.Identifier{s.tableName}.Sanitize())

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list migration state: %w", err)
	}
	defer rows.Close()

	var out []driver.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan migration state: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list migration state: %w", err)
	}
	return out, nil
}

func (s *store) GetByID(ctx context.Context, id string) (driver.Record, bool, error) {
	query := fmt.Sprintf(`
		SELECT id, version, migration_type, started_utc, completed_utc, error_message
		FROM %s
		WHERE id = $1
	`, pgx.Identifier{s.tableName}.Sanitize())

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return driver.Record{}, false, fmt.Errorf("get migration state %q: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return driver.Record{}, false, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return driver.Record{}, false, fmt.Errorf("scan migration state: %w", err)
	}
	return rec, true, nil
}

func scanRecord(rows pgx.Rows) (driver.Record, error) {
	var rec driver.Record
	var migrationType string
	if err := rows.Scan(&rec.ID, &rec.Version, &migrationType, &rec.StartedUTC, &rec.CompletedUTC, &rec.ErrorMessage); err != nil {
		return driver.Record{}, err
	}
	rec.Type = migration.Type(migrationType)
	return rec, nil
}
