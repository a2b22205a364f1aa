// Package examplemigrations contains sample migrations demonstrating each
// MigrationType against a document index, for integrators wiring their
// first Manager.
package examplemigrations

import (
	"context"
	"fmt"
	"time"

	"github.com/sigilindex/migrator/internal/backoff"
	"github.com/sigilindex/migrator/internal/idgen"
	"github.com/sigilindex/migrator/internal/indexstore"
	"github.com/sigilindex/migrator/internal/migration"
)

// CreateDocumentsIndex is a Versioned migration that provisions the
// application's primary document index. It runs at most once.
type CreateDocumentsIndex struct {
	migration.Base
	Backend indexstore.Backend
}

// NewCreateDocumentsIndex returns the migration that upgrades to version 1.
func NewCreateDocumentsIndex(backend indexstore.Backend) *CreateDocumentsIndex {
	return &CreateDocumentsIndex{
		Base:    migration.Base{MigrationType: migration.Versioned, MigrationVersion: migration.IntPtr(1), Name: "001_create_documents_index"},
		Backend: backend,
	}
}

func (m *CreateDocumentsIndex) Run(ctx context.Context) error {
	return m.Backend.CreateIndex(ctx, "documents", indexstore.Descriptor{
		Fields: map[string]string{
			"title":   "TEXT",
			"body":    "TEXT",
			"tags":    "JSONB",
		},
	})
}

// BackfillDocumentTimestamps is a VersionedAndResumable migration that
// backfills a field across an existing document index. Backend calls can
// fail transiently under load, so it is resumable; every attempt after the
// first waits for the delay given by Pacing before touching the backend.
type BackfillDocumentTimestamps struct {
	migration.Base
	Backend indexstore.Backend
	Pacing  backoff.Backoff

	attempt int
}

// NewBackfillDocumentTimestamps returns the migration that upgrades to
// version 2.
func NewBackfillDocumentTimestamps(backend indexstore.Backend) *BackfillDocumentTimestamps {
	return &BackfillDocumentTimestamps{
		Base:    migration.Base{MigrationType: migration.VersionedAndResumable, MigrationVersion: migration.IntPtr(2), Name: "002_backfill_document_timestamps"},
		Backend: backend,
		Pacing:  &backoff.ExponentialBackoff{Interval: 100 * time.Millisecond, Base: 2},
	}
}

func (m *BackfillDocumentTimestamps) Run(ctx context.Context) error {
	if m.attempt > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Pacing.Duration(m.attempt - 1)):
		}
	}
	m.attempt++

	if err := m.Backend.Refresh(ctx, "documents"); err != nil {
		return fmt.Errorf("backfill document timestamps: %w", err)
	}
	return nil
}

// ReconcileDocumentIDs is a Repeatable migration: each time its desired
// version advances, it re-runs, writing a reconciliation marker document
// under a freshly generated id so operators can confirm a pass actually
// executed.
type ReconcileDocumentIDs struct {
	migration.Base
	Backend indexstore.Backend
}

// NewReconcileDocumentIDs returns a Repeatable migration. Its Version must
// be set explicitly by the caller (via Base.MigrationVersion) once a
// reconciliation pass is due; nil means "do not run yet".
func NewReconcileDocumentIDs(backend indexstore.Backend) *ReconcileDocumentIDs {
	return &ReconcileDocumentIDs{
		Base:    migration.Base{MigrationType: migration.Repeatable, Name: "example.ReconcileDocumentIDs"},
		Backend: backend,
	}
}

func (m *ReconcileDocumentIDs) Run(ctx context.Context) error {
	id := idgen.Document()
	marker := []byte(fmt.Sprintf(`{"reconciled_at":%q}`, time.Now().UTC().Format(time.RFC3339)))
	if err := m.Backend.UpsertDocument(ctx, "documents", id, marker); err != nil {
		return fmt.Errorf("reconcile document ids: %w", err)
	}
	return m.Backend.Refresh(ctx, "documents")
}

var (
	_ migration.Migration = (*CreateDocumentsIndex)(nil)
	_ migration.Migration = (*BackfillDocumentTimestamps)(nil)
	_ migration.Migration = (*ReconcileDocumentIDs)(nil)
)
