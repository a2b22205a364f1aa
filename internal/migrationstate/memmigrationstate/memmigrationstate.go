// Package memmigrationstate provides an in-memory implementation of
// driver.StateStore, for tests and for the bootstrap of new collaborators.
package memmigrationstate

import (
	"context"
	"sync"

	"github.com/sigilindex/migrator/internal/migrationstate/driver"
)

type store struct {
	mu      sync.RWMutex
	records map[string]driver.Record
}

var _ driver.StateStore = (*store)(nil)

// New creates a new in-memory StateStore.
func New() driver.StateStore {
	return &store{records: make(map[string]driver.Record)}
}

func (s *store) Add(_ context.Context, state driver.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[state.ID] = state
	return nil
}

func (s *store) GetAll(_ context.Context) ([]driver.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driver.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *store) GetByID(_ context.Context, id string) (driver.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}
