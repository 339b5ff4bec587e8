package memory

import (
	"context"
	"sync"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Store implements ports.ChoiceStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.PendingChoice
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.PendingChoice),
	}
}

// Save persists a deep copy of the choice.
func (s *Store) Save(ctx context.Context, sessionID string, choice *domain.PendingChoice) error {
	copied := choice.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load returns a copy so callers can't mutate stored options by pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.PendingChoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	choice, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return choice.Clone(), nil
}

// Delete removes the choice.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns sessions with a pending choice.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
