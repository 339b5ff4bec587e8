// Package trace records one append-only audit entry per governed decision.
package trace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
)

// DefaultCapacity is the number of records kept in process.
const DefaultCapacity = 1024

// Recorder stamps trace records, keeps the most recent ones in memory and
// forwards every record to its sinks. Safe for concurrent use.
type Recorder struct {
	sinks  []ports.TraceSink
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	ring  []domain.TraceRecord
	next  int
	count int
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithSink adds a sink. Records are appended to sinks in the order they were added.
func WithSink(sink ports.TraceSink) Option {
	return func(r *Recorder) {
		r.sinks = append(r.sinks, sink)
	}
}

// WithCapacity sets how many records Records can return.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.ring = make([]domain.TraceRecord, n)
		}
	}
}

// WithLogger configures the logger every record is written to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		ring:   make([]domain.TraceRecord, DefaultCapacity),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns a fresh trace id.
func NewID() string {
	return uuid.NewString()
}

// Record appends rec. Missing TraceID and Timestamp are filled in and the
// final record is returned. Sink failures are joined into the returned error;
// the record is kept in memory regardless.
func (r *Recorder) Record(ctx context.Context, rec domain.TraceRecord) (domain.TraceRecord, error) {
	if rec.TraceID == "" {
		rec.TraceID = NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}
	if rec.DeniedVerbs == nil {
		rec.DeniedVerbs = []domain.FQN{}
	}

	r.mu.Lock()
	r.ring[r.next] = rec.Clone()
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	r.mu.Unlock()

	r.log(ctx, rec)

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("Trace sink failed", "trace_id", rec.TraceID, "err", err)
		return rec, fmt.Errorf("failed to append trace %s: %w", rec.TraceID, err)
	}
	return rec, nil
}

// Records returns the retained records, oldest first.
func (r *Recorder) Records() []domain.TraceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TraceRecord, 0, r.count)
	start := (r.next - r.count + len(r.ring)) % len(r.ring)
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)].Clone())
	}
	return out
}

// Find returns the retained record with the given id.
func (r *Recorder) Find(traceID string) (domain.TraceRecord, bool) {
	for _, rec := range r.Records() {
		if rec.TraceID == traceID {
			return rec, true
		}
	}
	return domain.TraceRecord{}, false
}

func (r *Recorder) log(ctx context.Context, rec domain.TraceRecord) {
	attrs := []any{
		"trace_id", rec.TraceID,
		"session_id", rec.SessionID,
		"outcome", rec.Outcome,
		"mode", rec.Mode,
		"policy_fingerprint", rec.PolicyFingerprint,
	}
	if rec.Verb != "" {
		attrs = append(attrs, "verb", rec.Verb)
	}
	if rec.SelectionSource != nil {
		attrs = append(attrs, "selection_source", *rec.SelectionSource)
	}
	if len(rec.DeniedVerbs) > 0 {
		attrs = append(attrs, "denied", rec.DeniedVerbs)
	}
	if rec.LegacyBypassAttempt {
		attrs = append(attrs, "legacy_bypass_attempt", true)
	}
	r.logger.InfoContext(ctx, "Trace recorded", attrs...)
}

// HashDSL returns the digest stored in TraceRecord.DSLHash.
func HashDSL(dsl string) string {
	sum := sha256.Sum256([]byte(dsl))
	return "sha256:" + hex.EncodeToString(sum[:])
}
