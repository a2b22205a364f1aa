// Package drivertest provides a conformance test suite shared by every
// migrationstate driver implementation.
package drivertest

import (
	"context"
	"testing"
	"time"

	"github.com/sigilindex/migrator/internal/migration"
	"github.com/sigilindex/migrator/internal/migrationstate/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Harness provides the test infrastructure for a StateStore implementation.
type Harness interface {
	MakeDriver(ctx context.Context) (driver.StateStore, error)
	Close()
}

// HarnessMaker creates a new Harness for each test.
type HarnessMaker func(ctx context.Context, t *testing.T) (Harness, error)

// RunConformanceTests executes the core conformance test suite for a
// migrationstate driver.
func RunConformanceTests(t *testing.T, newHarness HarnessMaker) {
	t.Helper()

	t.Run("GetByIDMissingReturnsNotFound", func(t *testing.T) {
		ctx := context.Background()
		h, err := newHarness(ctx, t)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		store, err := h.MakeDriver(ctx)
		require.NoError(t, err)

		_, ok, err := store.GetByID(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("AddThenGetByID", func(t *testing.T) {
		ctx := context.Background()
		h, err := newHarness(ctx, t)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		store, err := h.MakeDriver(ctx)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Second)
		rec := driver.Record{
			ID:         "3",
			Version:    3,
			Type:       migration.Versioned,
			StartedUTC: now,
		}
		require.NoError(t, store.Add(ctx, rec))

		got, ok, err := store.GetByID(ctx, "3")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Version, got.Version)
		assert.Equal(t, rec.Type, got.Type)
		assert.Nil(t, got.CompletedUTC)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("AddUpsertsByID", func(t *testing.T) {
		ctx := context.Background()
		h, err := newHarness(ctx, t)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		store, err := h.MakeDriver(ctx)
		require.NoError(t, err)

		started := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, store.Add(ctx, driver.Record{
			ID:         "3",
			Version:    3,
			Type:       migration.Versioned,
			StartedUTC: started,
		}))

		completed := started.Add(time.Second)
		require.NoError(t, store.Add(ctx, driver.Record{
			ID:           "3",
			Version:      3,
			Type:         migration.Versioned,
			StartedUTC:   started,
			CompletedUTC: &completed,
		}))

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.NotNil(t, all[0].CompletedUTC)
	})

	t.Run("GetAllReturnsEveryRecord", func(t *testing.T) {
		ctx := context.Background()
		h, err := newHarness(ctx, t)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		store, err := h.MakeDriver(ctx)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Second)
		for _, id := range []string{"1", "2", "example.Reindex"} {
			require.NoError(t, store.Add(ctx, driver.Record{
				ID:         id,
				Type:       migration.Versioned,
				StartedUTC: now,
			}))
		}

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ErrorMessageClearedOnSuccess", func(t *testing.T) {
		ctx := context.Background()
		h, err := newHarness(ctx, t)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		store, err := h.MakeDriver(ctx)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Second)
		msg := "Boom"
		require.NoError(t, store.Add(ctx, driver.Record{
			ID:           "3",
			Version:      3,
			Type:         migration.Versioned,
			StartedUTC:   now,
			ErrorMessage: &msg,
		}))

		completed := now.Add(time.Second)
		require.NoError(t, store.Add(ctx, driver.Record{
			ID:           "3",
			Version:      3,
			Type:         migration.Versioned,
			StartedUTC:   now,
			CompletedUTC: &completed,
		}))

		got, ok, err := store.GetByID(ctx, "3")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Nil(t, got.ErrorMessage)
		assert.NotNil(t, got.CompletedUTC)
	})
}
