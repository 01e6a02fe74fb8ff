package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ProcessSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ProcessSnapshot),
	}
}

// Save persists a copy of the snapshot.
func (s *Store) Save(ctx context.Context, key string, snapshot *domain.ProcessSnapshot) error {
	copied := snapshot.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = copied
	return nil
}

// Load returns a copy so callers cannot mutate the stored snapshot.
func (s *Store) Load(ctx context.Context, key string) (*domain.ProcessSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[key]
	if !ok {
		return nil, domain.ErrProcessNotFound
	}
	return snap.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored keys, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
