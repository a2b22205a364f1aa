// Package migrationerr defines the error kinds the migration manager and
// its collaborators surface: Configuration, Storage, Lock, and Migration
// failures, per the error handling design.
package migrationerr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Wrap one of these with fmt.Errorf("...: %w", Kind) so
// callers can classify a failure with errors.Is while still reading the
// concrete message.
var (
	// ErrConfiguration marks misuse at registration: a nil migration, a
	// duplicate identity among registered migrations, or registering after
	// the manager has started a run.
	ErrConfiguration = errors.New("migration configuration error")

	// ErrStorage marks any backend failure: index create/delete, state
	// upsert, get-all, health check, or refresh.
	ErrStorage = errors.New("migration storage error")

	// ErrLock marks failure to acquire the global migration lock within
	// its acquisition timeout.
	ErrLock = errors.New("migration lock error")

	// ErrMigration marks a failure raised from a user Run. The original
	// message is captured verbatim in the state record's ErrorMessage.
	ErrMigration = errors.New("migration run error")
)

// Configuration wraps msg as a Configuration error.
func Configuration(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConfiguration)
}

// Storage wraps err as a Storage error.
func Storage(err error, context string) error {
	return fmt.Errorf("%s: %w: %w", context, ErrStorage, err)
}

// Lock wraps err as a Lock error.
func Lock(err error, context string) error {
	return fmt.Errorf("%s: %w: %w", context, ErrLock, err)
}

// Migration wraps err as a Migration error, preserving its message for
// storage in a state record's ErrorMessage field.
func Migration(err error) error {
	return fmt.Errorf("%w: %w", ErrMigration, err)
}
