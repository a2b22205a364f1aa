// Package driver defines the StateStore interface implemented by concrete
// migration state backends.
package driver

import (
	"context"
	"time"

	"github.com/sigilindex/migrator/internal/migration"
)

// Record is the durable per-migration document written to the state index.
// A record always reflects the most recent attempt at the migration it
// belongs to.
type Record struct {
	// ID is the migration identity: str(version) for Versioned/
	// VersionedAndResumable, or the implementation's FullName for
	// Repeatable.
	ID string
	// Version is 0 for Repeatable when unspecified, the version number
	// otherwise.
	Version int
	Type     migration.Type
	// StartedUTC is when the most recent attempt began.
	StartedUTC time.Time
	// CompletedUTC is non-nil only if the most recent attempt succeeded.
	CompletedUTC *time.Time
	// ErrorMessage is non-nil only if the most recent attempt failed.
	ErrorMessage *string
}

// Succeeded reports whether this record reflects a completed attempt.
func (r Record) Succeeded() bool {
	return r.CompletedUTC != nil
}

// StateStore is the interface for migration state storage: add (upsert by
// id), list all, and lookup by id. It carries no transactional semantics
// beyond single-document upsert.
type StateStore interface {
	// Add upserts state by its ID.
	Add(ctx context.Context, state Record) error
	// GetAll returns every record currently in the state store.
	GetAll(ctx context.Context) ([]Record, error)
	// GetByID returns the record for id, or ok=false if absent.
	GetByID(ctx context.Context, id string) (rec Record, ok bool, err error)
}
