package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/sapling/pkg/domain"
)

// Store implements ports.ModelStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.ModelRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.ModelRecord),
	}
}

// Save keeps a copy of the record.
func (s *Store) Save(ctx context.Context, sessionID string, rec *domain.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = *rec
	return nil
}

// Load returns a copy of the record so callers cannot mutate the store.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return &rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns sessions with a stored model, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
