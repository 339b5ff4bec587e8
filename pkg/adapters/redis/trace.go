package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/verbgate/pkg/domain"
)

// DefaultTraceKey is the list trace records are appended to.
const DefaultTraceKey = "verbgate:trace"

// TraceSink appends trace records to a Redis list. Records are never rewritten.
type TraceSink struct {
	client backend.UniversalClient
	key    string
}

// NewTraceSink creates a sink writing to key (DefaultTraceKey when empty).
func NewTraceSink(client backend.UniversalClient, key string) *TraceSink {
	if key == "" {
		key = DefaultTraceKey
	}
	return &TraceSink{client: client, key: key}
}

// Append implements ports.TraceSink.
func (s *TraceSink) Append(ctx context.Context, rec domain.TraceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append trace to redis: %w", err)
	}
	return nil
}

// Range returns records start..stop (inclusive, negative indexes count from the end).
func (s *TraceSink) Range(ctx context.Context, start, stop int64) ([]domain.TraceRecord, error) {
	raw, err := s.client.LRange(ctx, s.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read traces: %w", err)
	}
	out := make([]domain.TraceRecord, 0, len(raw))
	for _, r := range raw {
		var rec domain.TraceRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
