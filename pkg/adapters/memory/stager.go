package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Stager collects staged DSL per session. It stands in for the execution runtime.
type Stager struct {
	mu     sync.Mutex
	staged map[string][]domain.StagedDSL
}

// NewStager creates an empty stager.
func NewStager() *Stager {
	return &Stager{staged: make(map[string][]domain.StagedDSL)}
}

// Stage implements ports.Stager.
func (s *Stager) Stage(ctx context.Context, staged domain.StagedDSL) error {
	staged.Verbs = slices.Clone(staged.Verbs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[staged.SessionID] = append(s.staged[staged.SessionID], staged)
	return nil
}

// Staged returns what was staged for a session, oldest first.
func (s *Stager) Staged(sessionID string) []domain.StagedDSL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.staged[sessionID])
}

// All returns everything staged, across sessions.
func (s *Stager) All() []domain.StagedDSL {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StagedDSL
	for _, v := range s.staged {
		out = append(out, v...)
	}
	return out
}
