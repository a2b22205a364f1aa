// Package migration defines the Migration abstraction supplied by
// applications: its classification, optional version, and run operation.
// The manager never inspects a migration beyond this contract.
package migration

import (
	"context"
	"strconv"
)

// Type classifies a Migration and determines its identity, pending
// predicate, and retry policy.
type Type string

const (
	// Versioned migrations are identified by an integer version and run at
	// most once successfully across all time.
	Versioned Type = "versioned"
	// VersionedAndResumable migrations are Versioned migrations whose run
	// may be retried in-process after a transient failure.
	VersionedAndResumable Type = "versioned_resumable"
	// Repeatable migrations are identified by their FullName and may
	// re-execute whenever their declared Version advances past the last
	// recorded one.
	Repeatable Type = "repeatable"
)

// Resumable reports whether migrations of this type are retried in-process
// on failure.
func (t Type) Resumable() bool {
	return t == VersionedAndResumable
}

// Migration is the unit of work an application registers with a Manager.
//
// Version is required (non-nil) for Versioned and VersionedAndResumable
// migrations; a nil Version causes the migration to be ignored entirely,
// as if it had never been registered. For Repeatable migrations, Version is
// the current desired version and may be nil, meaning "do not run yet".
type Migration interface {
	Type() Type
	Version() *int
	// FullName identifies a Repeatable migration across runs. Versioned and
	// VersionedAndResumable migrations are identified by their version
	// instead, so FullName is only consulted for Repeatable migrations.
	FullName() string
	Run(ctx context.Context) error
}

// Identity returns the string that keys a migration's state record: the
// stringified version for Versioned/VersionedAndResumable, or FullName for
// Repeatable. Callers must not invoke this for a Versioned/
// VersionedAndResumable migration with a nil Version.
func Identity(m Migration) string {
	if m.Type() == Repeatable {
		return m.FullName()
	}
	return strconv.Itoa(*m.Version())
}

// Base is an embeddable convenience implementation of the non-Run parts of
// Migration, for use by concrete migrations that only need to supply Run.
type Base struct {
	MigrationType Type
	MigrationVersion *int
	Name             string
}

func (b Base) Type() Type       { return b.MigrationType }
func (b Base) Version() *int    { return b.MigrationVersion }
func (b Base) FullName() string { return b.Name }

// IntPtr is a small helper for constructing the *int Version field from a
// literal.
func IntPtr(v int) *int {
	return &v
}
