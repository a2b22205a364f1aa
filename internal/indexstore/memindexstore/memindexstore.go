// Package memindexstore provides an in-memory implementation of
// indexstore.Backend for tests.
package memindexstore

import (
	"context"
	"sync"

	"github.com/sigilindex/migrator/internal/indexstore"
)

type store struct {
	mu        sync.RWMutex
	indices   map[string]bool
	documents map[string]map[string][]byte
}

var _ indexstore.Backend = (*store)(nil)

// New creates a new in-memory Backend.
func New() indexstore.Backend {
	return &store{
		indices:   make(map[string]bool),
		documents: make(map[string]map[string][]byte),
	}
}

func (s *store) CreateIndex(_ context.Context, name string, _ indexstore.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices[name] = true
	return nil
}

func (s *store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indices, name)
	return nil
}

func (s *store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indices[name], nil
}

func (s *store) Health(_ context.Context, name string) (indexstore.Health, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.indices[name] {
		return indexstore.HealthNonexistent, nil
	}
	return indexstore.HealthGreen, nil
}

func (s *store) Refresh(_ context.Context, _ string) error {
	return nil
}

func (s *store) UpsertDocument(_ context.Context, name, id string, document []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.documents[name]
	if !ok {
		docs = make(map[string][]byte)
		s.documents[name] = docs
	}
	docs[id] = document
	return nil
}
