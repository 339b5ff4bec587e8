package trace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/adapters/memory"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/trace"
)

type failingSink struct{}

func (failingSink) Append(ctx context.Context, rec domain.TraceRecord) error {
	return errors.New("disk full")
}

func TestRecorder_StampsAndFansOut(t *testing.T) {
	sinkA, sinkB := memory.NewTraceLog(), memory.NewTraceLog()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := trace.NewRecorder(trace.WithSink(sinkA), trace.WithSink(sinkB), trace.WithClock(func() time.Time { return at }))

	rec, err := r.Record(context.Background(), domain.TraceRecord{SessionID: "s1", Outcome: domain.KindDirect})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.TraceID)
	assert.Equal(t, at, rec.Timestamp)
	assert.NotNil(t, rec.DeniedVerbs)

	for _, sink := range []*memory.TraceLog{sinkA, sinkB} {
		got := sink.Records()
		require.Len(t, got, 1)
		assert.Equal(t, rec.TraceID, got[0].TraceID)
	}

	found, ok := r.Find(rec.TraceID)
	require.True(t, ok)
	assert.Equal(t, "s1", found.SessionID)
}

func TestRecorder_KeepsGivenTraceID(t *testing.T) {
	r := trace.NewRecorder()
	rec, err := r.Record(context.Background(), domain.TraceRecord{TraceID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", rec.TraceID)
}

func TestRecorder_RingBuffer(t *testing.T) {
	r := trace.NewRecorder(trace.WithCapacity(3))
	for i := 0; i < 5; i++ {
		_, err := r.Record(context.Background(), domain.TraceRecord{TraceID: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
	}

	got := r.Records()
	require.Len(t, got, 3)
	assert.Equal(t, "t2", got[0].TraceID)
	assert.Equal(t, "t4", got[2].TraceID)
}

func TestRecorder_SinkFailure(t *testing.T) {
	ok := memory.NewTraceLog()
	r := trace.NewRecorder(trace.WithSink(failingSink{}), trace.WithSink(ok))

	rec, err := r.Record(context.Background(), domain.TraceRecord{Outcome: domain.KindNoAllowedVerbs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// Later sinks still receive the record and it stays in process.
	assert.Len(t, ok.Records(), 1)
	_, found := r.Find(rec.TraceID)
	assert.True(t, found)
}

func TestRecorder_Concurrent(t *testing.T) {
	r := trace.NewRecorder(trace.WithCapacity(100))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Record(context.Background(), domain.TraceRecord{})
		}()
	}
	wg.Wait()
	assert.Len(t, r.Records(), 50)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := trace.NewLogSink(logging.NewJSON(&buf, slog.LevelInfo))

	forced := domain.FQN("report.send.v1")
	src := domain.SourceUserChoice
	err := sink.Append(context.Background(), domain.TraceRecord{
		TraceID:         "t1",
		ForcedVerb:      &forced,
		SelectionSource: &src,
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	record := line["record"].(map[string]any)
	assert.Equal(t, "report.send.v1", record["forced_verb_fqn"])
	assert.Equal(t, "user_choice", record["selection_source"])
}

func TestHashDSL(t *testing.T) {
	assert.Equal(t, trace.HashDSL("(a.b)"), trace.HashDSL("(a.b)"))
	assert.NotEqual(t, trace.HashDSL("(a.b)"), trace.HashDSL("(a.c)"))
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, trace.HashDSL(""))
}
