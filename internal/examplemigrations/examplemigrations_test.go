package examplemigrations_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigilindex/migrator/internal/examplemigrations"
	"github.com/sigilindex/migrator/internal/indexstore"
	"github.com/sigilindex/migrator/internal/indexstore/memindexstore"
	"github.com/sigilindex/migrator/internal/migration"
)

func TestCreateDocumentsIndex_CreatesIndex(t *testing.T) {
	backend := memindexstore.New()
	mig := examplemigrations.NewCreateDocumentsIndex(backend)

	require.Equal(t, migration.Versioned, mig.Type())
	require.Equal(t, 1, *mig.Version())

	err := mig.Run(context.Background())
	require.NoError(t, err)

	exists, err := backend.IndexExists(context.Background(), "documents")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestBackfillDocumentTimestamps_IsResumableAndRunsAgainstExistingIndex(t *testing.T) {
	backend := memindexstore.New()
	require.NoError(t, backend.CreateIndex(context.Background(), "documents", indexstore.Descriptor{}))

	mig := examplemigrations.NewBackfillDocumentTimestamps(backend)
	require.Equal(t, migration.VersionedAndResumable, mig.Type())
	require.True(t, mig.Type().Resumable())

	err := mig.Run(context.Background())
	require.NoError(t, err)
}

func TestBackfillDocumentTimestamps_PropagatesBackendError(t *testing.T) {
	mig := examplemigrations.NewBackfillDocumentTimestamps(&failingBackend{err: errors.New("connection refused")})

	err := mig.Run(context.Background())
	require.Error(t, err)
}

func TestReconcileDocumentIDs_IsRepeatable(t *testing.T) {
	backend := memindexstore.New()
	require.NoError(t, backend.CreateIndex(context.Background(), "documents", indexstore.Descriptor{}))

	mig := examplemigrations.NewReconcileDocumentIDs(backend)
	require.Equal(t, migration.Repeatable, mig.Type())
	require.Nil(t, mig.Version())
	require.Equal(t, "example.ReconcileDocumentIDs", migration.Identity(mig))

	require.NoError(t, mig.Run(context.Background()))
	require.NoError(t, mig.Run(context.Background()))
}

func TestReconcileDocumentIDs_PropagatesUpsertError(t *testing.T) {
	mig := examplemigrations.NewReconcileDocumentIDs(&failingUpsertBackend{err: errors.New("write failed")})

	err := mig.Run(context.Background())
	require.Error(t, err)
}

type failingUpsertBackend struct {
	indexstore.Backend
	err error
}

func (f *failingUpsertBackend) UpsertDocument(ctx context.Context, name, id string, document []byte) error {
	return f.err
}

type failingBackend struct {
	indexstore.Backend
	err error
}

func (f *failingBackend) Refresh(ctx context.Context, name string) error {
	return f.err
}
