package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/fpconsole/internal/store"
)

// Store implements store.Store using in-memory storage.
// Data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string][]byte),
	}
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.records[key]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Clone to avoid external modifications
	return append([]byte(nil), value...), nil
}

// Put stores a record under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes a record by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
