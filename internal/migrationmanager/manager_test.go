package migrationmanager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sigilindex/migrator/internal/indexstore/memindexstore"
	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationerr"
	"github.com/sigilindex/migrator/internal/migrationmanager"
	"github.com/sigilindex/migrator/internal/migrationstate"
	"github.com/sigilindex/migrator/internal/migrationstate/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *migrationmanager.Manager {
	return migrationmanager.New(migrationmanager.Config{
		StateStore:         migrationstate.NewMemStateStore(),
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})
}

func versionedAt(v int) *fakeMigration {
	return &fakeMigration{migrationType: migration.Versioned, version: &v}
}

func resumableAt(v int) *fakeMigration {
	return &fakeMigration{migrationType: migration.VersionedAndResumable, version: &v}
}

// Scenario 1: ignored version-less migration.
func TestScenario_IgnoredVersionlessMigration(t *testing.T) {
	mgr := newTestManager()
	require.NoError(t, mgr.Register(&fakeMigration{migrationType: migration.Versioned, version: nil}))

	ctx := context.Background()
	status, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)

	assert.Empty(t, status.PendingMigrations)
	assert.False(t, status.NeedsMigration)
	assert.Equal(t, 0, status.CurrentVersion)
}

// Scenario 2: bootstrap at latest.
func TestScenario_BootstrapAtLatest(t *testing.T) {
	mgr := newTestManager()
	require.NoError(t, mgr.Register(versionedAt(3)))

	ctx := context.Background()
	status, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)

	assert.Empty(t, status.PendingMigrations)
	assert.False(t, status.NeedsMigration)
	assert.Equal(t, 3, status.CurrentVersion)
}

// Scenario 3: pending upgrade.
func TestScenario_PendingUpgrade(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})
	require.NoError(t, mgr.Register(versionedAt(3)))

	status, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status.PendingMigrations, 1)
	assert.True(t, status.NeedsMigration)
	assert.Equal(t, 1, status.CurrentVersion)

	result, err := mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrationmanager.Success, result)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rec, ok, err := store.GetByID(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, rec.CompletedUTC)
	assert.Nil(t, rec.ErrorMessage)
}

// Scenario 4: repeatable re-run across version bumps.
func TestScenario_RepeatableReRun(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})

	r := &fakeMigration{migrationType: migration.Repeatable, fullName: "example.ReindexDocuments"}
	require.NoError(t, mgr.Register(r))

	status, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)

	r.SetVersion(0)
	result, err := mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrationmanager.Success, result)

	rec, ok, err := store.GetByID(ctx, "example.ReindexDocuments")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, rec.Version)

	r.SetVersion(1)
	status, err = mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, status.PendingMigrations, 1)

	result, err = mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrationmanager.Success, result)

	rec, ok, err = store.GetByID(ctx, "example.ReindexDocuments")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, 2, r.runCount)
}

// Open Question (spec §9): a Repeatable migration reporting a nil version
// after a prior state record already exists for it must be treated as
// non-pending, not as "rerun from scratch".
func TestInvariant_RepeatableReportingNilVersionAfterPriorRecordIsNotPending(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	r := &fakeMigration{migrationType: migration.Repeatable, fullName: "example.ReindexDocuments"}
	require.NoError(t, mgr.Register(r))

	r.SetVersion(0)
	result, err := mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrationmanager.Success, result)

	r.SetVersionNil()
	status, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)
	assert.False(t, status.NeedsMigration)
}

// Scenario 5: non-resumable failure.
func TestScenario_NonResumableFailure(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})

	boom := errors.New("Boom")
	m := versionedAt(3)
	m.run = func(attempt int) error { return boom }
	require.NoError(t, mgr.Register(m))

	result, err := mgr.RunMigrationsAsync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, migrationerr.ErrMigration)
	assert.Equal(t, migrationmanager.Failed, result)
	assert.Equal(t, 1, m.runCount)

	rec, ok, err := store.GetByID(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, rec.CompletedUTC)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "Boom", *rec.ErrorMessage)
}

// Scenario 6: resumable retry then recovery across two runs.
func TestScenario_ResumableRetryThenRecovery(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})

	m := resumableAt(3)
	m.run = func(attempt int) error {
		if attempt < 4 {
			return errors.New("Boom")
		}
		return nil
	}
	require.NoError(t, mgr.Register(m))

	result, err := mgr.RunMigrationsAsync(ctx)
	require.Error(t, err)
	assert.Equal(t, migrationmanager.Failed, result)
	assert.Equal(t, 3, m.runCount)

	rec, ok, err := store.GetByID(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, rec.CompletedUTC)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "Boom", *rec.ErrorMessage)

	result, err = mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrationmanager.Success, result)
	assert.Equal(t, 4, m.runCount)

	rec, ok, err = store.GetByID(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, rec.CompletedUTC)
	assert.Nil(t, rec.ErrorMessage)
}

// Invariant: failure isolation — a terminal failure stops later pending
// migrations from being attempted.
func TestInvariant_FailureIsolation(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               &inprocessLock{},
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})

	first := versionedAt(3)
	first.run = func(attempt int) error { return errors.New("Boom") }
	second := versionedAt(4)

	require.NoError(t, mgr.Register(first))
	require.NoError(t, mgr.Register(second))

	result, err := mgr.RunMigrationsAsync(ctx)
	require.Error(t, err)
	assert.Equal(t, migrationmanager.Failed, result)

	assert.Equal(t, 1, first.runCount)
	assert.Equal(t, 0, second.runCount)

	_, ok, err := store.GetByID(ctx, "4")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Invariant: duplicate identities are a Configuration error.
func TestInvariant_DuplicateIdentityIsConfigurationError(t *testing.T) {
	mgr := newTestManager()
	require.NoError(t, mgr.Register(versionedAt(3)))
	require.NoError(t, mgr.Register(versionedAt(3)))

	ctx := context.Background()
	_, err := mgr.GetMigrationStatus(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, migrationerr.ErrConfiguration)
}

// Invariant: status is pure across consecutive calls once bootstrap has run.
func TestInvariant_StatusIsPureAfterBootstrap(t *testing.T) {
	mgr := newTestManager()
	require.NoError(t, mgr.Register(versionedAt(3)))

	ctx := context.Background()
	first, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)

	second, err := mgr.GetMigrationStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// Invariant: registering a nil migration is a Configuration error.
func TestInvariant_RegisterNilMigrationIsConfigurationError(t *testing.T) {
	mgr := newTestManager()
	err := mgr.Register(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, migrationerr.ErrConfiguration)
}

// Invariant: registering after a run has started is a Configuration error.
func TestInvariant_RegisterAfterRunIsConfigurationError(t *testing.T) {
	mgr := newTestManager()
	require.NoError(t, mgr.Register(versionedAt(3)))

	ctx := context.Background()
	_, err := mgr.RunMigrationsAsync(ctx)
	require.NoError(t, err)

	err = mgr.Register(versionedAt(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, migrationerr.ErrConfiguration)
}

// Invariant: lock contention surfaces as Failed without running anything.
func TestInvariant_LockContentionFailsWithoutRunning(t *testing.T) {
	store := migrationstate.NewMemStateStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Add(ctx, driver.Record{
		ID: "1", Version: 1, Type: migration.Versioned,
		StartedUTC: now, CompletedUTC: &now,
	}))

	lock := &inprocessLock{}
	lock.mu.Lock() // simulate another process holding the lock
	defer lock.mu.Unlock()

	mgr := migrationmanager.New(migrationmanager.Config{
		StateStore:         store,
		IndexBackend:       memindexstore.New(),
		Lock:               lock,
		StateIndexName:     "migrations",
		AcquireTimeout:     time.Second,
		RunLeaseTimeout:    time.Minute,
		CreateLeaseTimeout: time.Second,
	})

	m := versionedAt(3)
	require.NoError(t, mgr.Register(m))

	result, err := mgr.RunMigrationsAsync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, migrationerr.ErrLock)
	assert.Equal(t, migrationmanager.Failed, result)
	assert.Equal(t, 0, m.runCount)
}
