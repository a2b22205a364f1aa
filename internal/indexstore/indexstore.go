// Package indexstore is the backend collaborator the migration manager
// depends on for index lifecycle: create, delete, existence, health, and
// refresh. Indices are modelled as Postgres tables of jsonb documents,
// keyed by document id.
package indexstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Health describes the observed state of an index, mirroring the
// green/yellow/red vocabulary of document-oriented search backends even
// though this implementation has no replica shards to go yellow over.
type Health string

const (
	HealthGreen       Health = "green"
	HealthYellow      Health = "yellow"
	HealthRed         Health = "red"
	HealthNonexistent Health = "nonexistent"
)

// Descriptor describes the mapping of an index to be created. Fields are
// column name to SQL type, beyond the implicit id/document columns every
// index carries.
type Descriptor struct {
	Fields map[string]string
}

// ErrIndexNotHealthy is returned by CreateIndex when the cluster health
// check after creation reports anything other than green or yellow.
var ErrIndexNotHealthy = errors.New("indexstore: index did not reach a healthy state")

// Backend is the index lifecycle contract the migration manager and its
// migrations depend on.
type Backend interface {
	// CreateIndex idempotently creates name with the given descriptor and
	// verifies cluster health is yellow or green afterward.
	CreateIndex(ctx context.Context, name string, descriptor Descriptor) error
	// DeleteIndex idempotently deletes name.
	DeleteIndex(ctx context.Context, name string) error
	// IndexExists reports whether name currently exists.
	IndexExists(ctx context.Context, name string) (bool, error)
	// Health reports the current health of name.
	Health(ctx context.Context, name string) (Health, error)
	// Refresh makes previously written documents visible to the next read
	// against name.
	Refresh(ctx context.Context, name string) error
	// UpsertDocument writes document under id within index name, replacing
	// any existing document at that id.
	UpsertDocument(ctx context.Context, name, id string, document []byte) error
}

type pgBackend struct {
	db *pgxpool.Pool
}

var _ Backend = (*pgBackend)(nil)

// New creates a Postgres-backed Backend.
func New(db *pgxpool.Pool) Backend {
	return &pgBackend{db: db}
}

func (b *pgBackend) CreateIndex(ctx context.Context, name string, descriptor Descriptor) error {
	ident := pgx.Identifier{name}.Sanitize()

	columns := `id TEXT PRIMARY KEY, document JSONB NOT NULL`
	for field, sqlType := range descriptor.Fields {
		columns += fmt.Sprintf(", %s %s", pgx.Identifier{field}.Sanitize(), sqlType)
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, ident, columns)
	if _, err := b.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}

	health, err := b.Health(ctx, name)
	if err != nil {
		return err
	}
	if health != HealthGreen && health != HealthYellow {
		return fmt.Errorf("create index %q: %w: %s", name, ErrIndexNotHealthy, health)
	}
	return nil
}

func (b *pgBackend) DeleteIndex(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pgx.Identifier{name}.Sanitize())
	if _, err := b.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	return nil
}

func (b *pgBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := b.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables WHERE table_name = $1
	)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check index %q exists: %w", name, err)
	}
	return exists, nil
}

func (b *pgBackend) Health(ctx context.Context, name string) (Health, error) {
	exists, err := b.IndexExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return HealthNonexistent, nil
	}

	if err := b.db.QueryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, pgx.Identifier{name}.Sanitize())).Scan(new(int)); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return HealthRed, fmt.Errorf("health check index %q: %w", name, err)
	}
	return HealthGreen, nil
}

func (b *pgBackend) Refresh(ctx context.Context, name string) error {
	// Postgres reads already observe committed writes from any session, so
	// refresh is a no-op that only validates the index is reachable.
	_, err := b.Health(ctx, name)
	return err
}

func (b *pgBackend) UpsertDocument(ctx context.Context, name, id string, document []byte) error {
	ident := pgx.Identifier{name}.Sanitize()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, document) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`, ident)
	if _, err := b.db.Exec(ctx, query, id, document); err != nil {
		return fmt.Errorf("upsert document %q into index %q: %w", id, name, err)
	}
	return nil
}
