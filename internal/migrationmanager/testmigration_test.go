package migrationmanager_test

import (
	"context"

	"github.com/sigilindex/migrator/internal/migration"
)

// fakeMigration is a mutable test double: Version can be changed between
// status/run calls, and Run delegates to a configurable function so tests
// can simulate failures and recoveries.
type fakeMigration struct {
	migrationType migration.Type
	version       *int
	fullName      string

	runCount int
	run      func(attempt int) error
}

func (m *fakeMigration) Type() migration.Type { return m.migrationType }
func (m *fakeMigration) Version() *int        { return m.version }
func (m *fakeMigration) FullName() string     { return m.fullName }

func (m *fakeMigration) Run(ctx context.Context) error {
	m.runCount++
	if m.run == nil {
		return nil
	}
	return m.run(m.runCount)
}

func (m *fakeMigration) SetVersion(v int) {
	m.version = &v
}

func (m *fakeMigration) SetVersionNil() {
	m.version = nil
}
