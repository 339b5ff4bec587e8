package memory

import (
	"context"
	"sync"

	"github.com/aretw0/verbgate/pkg/domain"
)

// TraceLog is an append-only in-memory TraceSink.
type TraceLog struct {
	mu      sync.Mutex
	records []domain.TraceRecord
}

// NewTraceLog creates an empty trace log.
func NewTraceLog() *TraceLog {
	return &TraceLog{}
}

// Append implements ports.TraceSink.
func (l *TraceLog) Append(ctx context.Context, rec domain.TraceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec.Clone())
	return nil
}

// Records returns a copy of everything appended so far.
func (l *TraceLog) Records() []domain.TraceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TraceRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.Clone()
	}
	return out
}
