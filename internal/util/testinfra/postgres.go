// Package testinfra provides ephemeral backing infrastructure for tests
// that need a real Postgres instance instead of an in-memory fake.
package testinfra

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewPostgresURL spins up a dedicated Postgres container for the test and
// returns its connection URL. The container is terminated on cleanup.
func NewPostgresURL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("migrator_test"),
		postgres.WithUsername("migrator"),
		postgres.WithPassword("migrator"),
		postgres.BasicWaitStrategies(),
		postgres.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %s", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	return url
}
