package ports

import (
	"context"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Gate is the inbound port shared by the HTTP, MCP and CLI adapters.
// It is the only way into the governed pipeline.
type Gate interface {
	// Resolve turns a free-form utterance into a governed outcome.
	Resolve(ctx context.Context, sessionID, utterance string) (domain.Outcome, error)

	// Reply answers the session's pending choice by index.
	// A non-empty choiceID must match the pending choice or the reply is stale.
	Reply(ctx context.Context, sessionID string, index int, choiceID string) (domain.Outcome, error)

	// Pending returns the session's pending choice, if any.
	Pending(ctx context.Context, sessionID string) (*domain.PendingChoice, error)
}
