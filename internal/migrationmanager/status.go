package migrationmanager

import (
	"fmt"
	"sort"

	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationerr"
	"github.com/sigilindex/migrator/internal/migrationstate"
)

// computeStatus is the pure function from (registered migrations,
// persisted state records) to a Status. It never touches storage.
func computeStatus(migrations []migration.Migration, records []migrationstate.Record) (Status, error) {
	filtered := filterIgnored(migrations)

	if err := checkDuplicateIdentities(filtered); err != nil {
		return Status{}, err
	}

	byID := make(map[string]migrationstate.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	currentVersion := 0
	for _, rec := range records {
		if !rec.Succeeded() {
			continue
		}
		if rec.Type != migration.Versioned && rec.Type != migration.VersionedAndResumable {
			continue
		}
		if rec.Version > currentVersion {
			currentVersion = rec.Version
		}
	}

	var versionedPending, repeatablePending []migration.Migration
	for _, mig := range filtered {
		switch mig.Type() {
		case migration.Versioned, migration.VersionedAndResumable:
			rec, ok := byID[migration.Identity(mig)]
			if !ok || !rec.Succeeded() {
				versionedPending = append(versionedPending, mig)
			}
		case migration.Repeatable:
			if mig.Version() == nil {
				continue
			}
			rec, ok := byID[migration.Identity(mig)]
			if !ok || rec.Version < *mig.Version() {
				repeatablePending = append(repeatablePending, mig)
			}
		}
	}

	sort.SliceStable(versionedPending, func(i, j int) bool {
		return *versionedPending[i].Version() < *versionedPending[j].Version()
	})

	pending := append(versionedPending, repeatablePending...)

	return Status{
		PendingMigrations: pending,
		NeedsMigration:    len(pending) > 0,
		CurrentVersion:    currentVersion,
	}, nil
}

// filterIgnored drops Versioned/VersionedAndResumable migrations with a
// nil version; they are treated as if never registered.
func filterIgnored(migrations []migration.Migration) []migration.Migration {
	filtered := make([]migration.Migration, 0, len(migrations))
	for _, mig := range migrations {
		if mig.Type() != migration.Repeatable && mig.Version() == nil {
			continue
		}
		filtered = append(filtered, mig)
	}
	return filtered
}

// checkDuplicateIdentities enforces identity uniqueness among the filtered
// set. A Repeatable migration with a nil version still has a well-defined
// FullName-based identity and participates in this check.
func checkDuplicateIdentities(filtered []migration.Migration) error {
	seen := make(map[string]bool, len(filtered))
	for _, mig := range filtered {
		id := migration.Identity(mig)
		if seen[id] {
			return migrationerr.Configuration(fmt.Sprintf("duplicate migration identity %q", id))
		}
		seen[id] = true
	}
	return nil
}

// maxRegisteredVersion returns the highest Version among Versioned/
// VersionedAndResumable migrations with a non-nil version, or -1 if none.
func maxRegisteredVersion(migrations []migration.Migration) int {
	max := -1
	for _, mig := range migrations {
		if mig.Type() != migration.Versioned && mig.Type() != migration.VersionedAndResumable {
			continue
		}
		v := mig.Version()
		if v == nil {
			continue
		}
		if *v > max {
			max = *v
		}
	}
	return max
}
