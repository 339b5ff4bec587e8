package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/verbgate/pkg/domain"
)

// DefaultStageKey is the list staged DSL is queued on for the executor.
const DefaultStageKey = "verbgate:staged"

// Stager queues governed DSL on a Redis list, oldest first.
type Stager struct {
	client backend.UniversalClient
	key    string
}

// NewStager creates a stager writing to key (DefaultStageKey when empty).
func NewStager(client backend.UniversalClient, key string) *Stager {
	if key == "" {
		key = DefaultStageKey
	}
	return &Stager{client: client, key: key}
}

// Stage implements ports.Stager.
func (s *Stager) Stage(ctx context.Context, staged domain.StagedDSL) error {
	data, err := json.Marshal(staged)
	if err != nil {
		return fmt.Errorf("failed to marshal staged dsl: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to stage dsl: %w", err)
	}
	return nil
}

// Next pops the oldest staged block. ok is false when the queue is empty.
func (s *Stager) Next(ctx context.Context) (staged domain.StagedDSL, ok bool, err error) {
	raw, err := s.client.LPop(ctx, s.key).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.StagedDSL{}, false, nil
	}
	if err != nil {
		return domain.StagedDSL{}, false, fmt.Errorf("failed to pop staged dsl: %w", err)
	}
	if err := json.Unmarshal(raw, &staged); err != nil {
		return domain.StagedDSL{}, false, fmt.Errorf("failed to unmarshal staged dsl: %w", err)
	}
	return staged, true, nil
}
