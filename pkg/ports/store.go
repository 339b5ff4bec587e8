package ports

import (
	"context"

	"github.com/aretw0/verbgate/pkg/domain"
)

// ChoiceStore defines the interface for persisting the pending choice of each session.
type ChoiceStore interface {
	// Save persists the pending choice for a given session ID, replacing any previous one.
	Save(ctx context.Context, sessionID string, choice *domain.PendingChoice) error

	// Load retrieves the pending choice for a given session ID.
	// Returns domain.ErrSessionNotFound if the session has none.
	Load(ctx context.Context, sessionID string) (*domain.PendingChoice, error)

	// Delete removes the pending choice for a given session ID. Deleting a missing one is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of sessions with a pending choice.
	List(ctx context.Context) ([]string, error)
}

// TraceSink is an append-only destination for trace records.
type TraceSink interface {
	Append(ctx context.Context, rec domain.TraceRecord) error
}

// Stager receives governed DSL for execution.
type Stager interface {
	Stage(ctx context.Context, staged domain.StagedDSL) error
}
