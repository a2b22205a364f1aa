// Package migrationmanager implements the migration manager: it registers
// migrations, computes their status against persisted state, acquires the
// global migration lock, executes pending migrations in order, writes
// state records, retries resumable failures, and reports a result.
package migrationmanager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sigilindex/migrator/internal/indexstore"
	"github.com/sigilindex/migrator/internal/logging"
	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationerr"
	"github.com/sigilindex/migrator/internal/migrationlock"
	"github.com/sigilindex/migrator/internal/migrationstate"
)

const migrationLockKey = "migrations"

const (
	maxResumableAttempts  = 3
	maxNonResumableAttempt = 1
)

// Config configures a Manager. Collaborators are injected explicitly; the
// manager never reaches for process-wide singletons. StateStore,
// IndexBackend and Lock are required; Logger may be nil, in which case the
// manager does not log.
type Config struct {
	StateStore   migrationstate.StateStore
	IndexBackend indexstore.Backend
	Lock         migrationlock.Provider
	Logger       *logging.Logger

	// StateIndexName names the dedicated index hosting state records.
	StateIndexName string

	// AcquireTimeout bounds how long both the run lock and the
	// create-index lock wait to be acquired.
	AcquireTimeout time.Duration
	// RunLeaseTimeout bounds how long a single RunMigrationsAsync
	// invocation may hold the run lock.
	RunLeaseTimeout time.Duration
	// CreateLeaseTimeout bounds how long EnsureStateIndex may hold the
	// create-index lock.
	CreateLeaseTimeout time.Duration
}

// Manager holds the registered-migration list and depends on its
// collaborators by explicit injection.
type Manager struct {
	stateStore   migrationstate.StateStore
	indexBackend indexstore.Backend
	lock         migrationlock.Provider
	logger       *logging.Logger

	stateIndexName     string
	acquireTimeout     time.Duration
	runLeaseTimeout    time.Duration
	createLeaseTimeout time.Duration

	mu         sync.Mutex
	migrations []migration.Migration
	frozen     atomic.Bool
}

// New creates a Manager from its collaborators.
func New(cfg Config) *Manager {
	return &Manager{
		stateStore:         cfg.StateStore,
		indexBackend:       cfg.IndexBackend,
		lock:               cfg.Lock,
		logger:             cfg.Logger,
		stateIndexName:     cfg.StateIndexName,
		acquireTimeout:     cfg.AcquireTimeout,
		runLeaseTimeout:    cfg.RunLeaseTimeout,
		createLeaseTimeout: cfg.CreateLeaseTimeout,
	}
}

// Register appends mig to the registered-migration list. It has no other
// side effect; the order of registration matters only for tie-breaking
// between migrations at equal version.
func (m *Manager) Register(mig migration.Migration) error {
	if mig == nil {
		return migrationerr.Configuration("cannot register a nil migration")
	}
	if m.frozen.Load() {
		return migrationerr.Configuration("cannot register a migration after the manager has started running")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrations = append(m.migrations, mig)
	if m.logger != nil {
		m.logger.Debug("migration registered",
			zap.String("type", string(mig.Type())),
			zap.String("name", mig.FullName()))
	}
	return nil
}

func (m *Manager) snapshotMigrations() []migration.Migration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]migration.Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// RegisteredMigrations returns every migration registered so far, in
// registration order.
func (m *Manager) RegisteredMigrations() []migration.Migration {
	return m.snapshotMigrations()
}

// EnsureStateIndex idempotently creates the dedicated state index via the
// backend collaborator, gated by a lock keyed "create-index:<name>" so two
// processes never race on bootstrap.
func (m *Manager) EnsureStateIndex(ctx context.Context) error {
	lockKey := "create-index:" + m.stateIndexName

	descriptor := indexstore.Descriptor{
		Fields: map[string]string{
			"version":        "INTEGER",
			"migration_type": "TEXT",
			"started_utc":    "TIMESTAMPTZ",
			"completed_utc":  "TIMESTAMPTZ",
			"error_message":  "TEXT",
		},
	}

	if m.logger != nil {
		m.logger.Debug("acquiring create-index lock", zap.String("key", lockKey))
	}
	acquired, err := m.lock.TryUsing(ctx, lockKey, m.acquireTimeout, m.createLeaseTimeout, func(ctx context.Context) error {
		return m.indexBackend.CreateIndex(ctx, m.stateIndexName, descriptor)
	})
	if !acquired {
		if m.logger != nil {
			m.logger.Warn("create-index lock contended", zap.String("key", lockKey))
		}
		return lockFailure(err, "acquire create-index lock")
	}
	if err != nil {
		return migrationerr.Storage(err, "create state index")
	}
	if m.logger != nil {
		m.logger.Info("state index ensured", zap.String("index", m.stateIndexName))
	}
	return nil
}

// GetMigrationStatus is a pure read, except for the one-time bootstrap
// write on a freshly-installed system. It never acquires the global lock.
func (m *Manager) GetMigrationStatus(ctx context.Context) (Status, error) {
	migrations := m.snapshotMigrations()

	records, err := m.stateStore.GetAll(ctx)
	if err != nil {
		return Status{}, migrationerr.Storage(err, "list migration state")
	}

	if len(records) == 0 {
		wrote, err := m.bootstrap(ctx, migrations)
		if err != nil {
			return Status{}, err
		}
		if wrote {
			records, err = m.stateStore.GetAll(ctx)
			if err != nil {
				return Status{}, migrationerr.Storage(err, "list migration state")
			}
		}
	}

	return computeStatus(migrations, records)
}

// bootstrap applies the fresh-install policy: if no state records exist at
// all and at least one Versioned/VersionedAndResumable migration with a
// real version is registered, write a single record recording all
// historical versions as already satisfied.
func (m *Manager) bootstrap(ctx context.Context, migrations []migration.Migration) (bool, error) {
	maxVersion := maxRegisteredVersion(migrations)
	if maxVersion < 0 {
		return false, nil
	}

	if m.logger != nil {
		m.logger.Info("fresh installation detected, bootstrapping migration state",
			zap.Int("max_version", maxVersion))
	}

	now := time.Now().UTC()
	rec := migrationstate.Record{
		ID:           strconv.Itoa(maxVersion),
		Version:      maxVersion,
		Type:         migration.Versioned,
		StartedUTC:   now,
		CompletedUTC: &now,
	}
	if err := m.stateStore.Add(ctx, rec); err != nil {
		return false, migrationerr.Storage(err, "write bootstrap migration state")
	}
	if err := m.indexBackend.Refresh(ctx, m.stateIndexName); err != nil {
		return false, migrationerr.Storage(err, "refresh state index after bootstrap")
	}
	if m.logger != nil {
		m.logger.Info("bootstrap complete", zap.Int("max_version", maxVersion))
	}
	return true, nil
}

// RunMigrationsAsync computes status, and if any migration is pending,
// acquires the global lock and executes every pending migration in order,
// stopping at the first terminal failure.
func (m *Manager) RunMigrationsAsync(ctx context.Context) (Result, error) {
	m.frozen.Store(true)

	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return Failed, err
	}
	if !status.NeedsMigration {
		if m.logger != nil {
			m.logger.Debug("no pending migrations")
		}
		return Success, nil
	}

	if m.logger != nil {
		m.logger.Info("migrations pending, acquiring global migration lock",
			zap.Int("pending", len(status.PendingMigrations)))
	}
	acquired, err := m.lock.TryUsing(ctx, migrationLockKey, m.acquireTimeout, m.runLeaseTimeout, func(ctx context.Context) error {
		return m.runPending(ctx)
	})
	if !acquired {
		if m.logger != nil {
			m.logger.Warn("global migration lock contended")
		}
		return Failed, lockFailure(err, "acquire global migration lock")
	}
	if err != nil {
		if m.logger != nil {
			m.logger.Error("migration run failed", zap.Error(err))
		}
		return Failed, err
	}
	if m.logger != nil {
		m.logger.Info("migration run complete")
	}
	return Success, nil
}

// runPending recomputes status under the lock (another process may have
// advanced it) and executes every pending migration in order, stopping at
// the first failure.
func (m *Manager) runPending(ctx context.Context) error {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, mig := range status.PendingMigrations {
		if err := m.runOne(ctx, mig); err != nil {
			return err
		}
		if err := m.indexBackend.Refresh(ctx, m.stateIndexName); err != nil {
			return migrationerr.Storage(err, "refresh state index")
		}
	}
	return nil
}

// runOne upserts the starting state record, invokes Run (retrying up to 3
// total attempts in-process for VersionedAndResumable migrations), and
// upserts the final state record reflecting success or failure.
func (m *Manager) runOne(ctx context.Context, mig migration.Migration) error {
	id := migration.Identity(mig)
	version := 0
	if v := mig.Version(); v != nil {
		version = *v
	}

	started := time.Now().UTC()
	startRec := migrationstate.Record{
		ID:         id,
		Version:    version,
		Type:       mig.Type(),
		StartedUTC: started,
	}
	if err := m.stateStore.Add(ctx, startRec); err != nil {
		return migrationerr.Storage(err, fmt.Sprintf("start migration %q", id))
	}
	if m.logger != nil {
		m.logger.Info("migration starting", zap.String("id", id), zap.String("type", string(mig.Type())))
	}

	attempts := maxNonResumableAttempt
	if mig.Type().Resumable() {
		attempts = maxResumableAttempts
	}

	var runErr error
	for attempt := 0; attempt < attempts; attempt++ {
		runErr = mig.Run(ctx)
		if runErr == nil {
			break
		}
		if m.logger != nil && attempt < attempts-1 {
			m.logger.Warn("migration attempt failed, retrying",
				zap.String("id", id), zap.Int("attempt", attempt+1), zap.Error(runErr))
		}
	}

	if runErr == nil {
		completed := time.Now().UTC()
		doneRec := migrationstate.Record{
			ID:           id,
			Version:      version,
			Type:         mig.Type(),
			StartedUTC:   started,
			CompletedUTC: &completed,
		}
		if err := m.stateStore.Add(ctx, doneRec); err != nil {
			return migrationerr.Storage(err, fmt.Sprintf("complete migration %q", id))
		}
		if m.logger != nil {
			m.logger.Info("migration succeeded", zap.String("id", id))
		}
		return nil
	}

	if m.logger != nil {
		m.logger.Error("migration failed", zap.String("id", id), zap.Error(runErr))
	}

	msg := runErr.Error()
	failRec := migrationstate.Record{
		ID:           id,
		Version:      version,
		Type:         mig.Type(),
		StartedUTC:   started,
		ErrorMessage: &msg,
	}
	if err := m.stateStore.Add(ctx, failRec); err != nil {
		return migrationerr.Storage(err, fmt.Sprintf("record failed migration %q", id))
	}
	return migrationerr.Migration(runErr)
}

func lockFailure(cause error, context string) error {
	if cause != nil {
		return migrationerr.Lock(cause, context)
	}
	return migrationerr.Lock(errors.New("timed out waiting for lock"), context)
}
