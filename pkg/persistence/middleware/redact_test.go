package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/pkg/adapters/memory"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/persistence/middleware"
)

func TestRedactingSink(t *testing.T) {
	log := memory.NewTraceLog()
	sink, err := middleware.NewRedactingSink(log, []string{`[\w.]+@[\w.]+`, `\b\d{3}-\d{2}-\d{4}\b`})
	require.NoError(t, err)

	rec := domain.TraceRecord{
		TraceID:   "t1",
		Utterance: "send the report to jane.doe@example.com for 999-99-9999",
		Outcome:   "direct",
	}
	require.NoError(t, sink.Append(context.Background(), rec))

	assert.Equal(t, "send the report to jane.doe@example.com for 999-99-9999", rec.Utterance,
		"caller's record must not change")
	got := log.Records()
	require.Len(t, got, 1)
	assert.Equal(t, "send the report to *** for ***", got[0].Utterance)
	assert.Equal(t, "direct", got[0].Outcome)
}

func TestRedactingSink_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactingSink(memory.NewTraceLog(), []string{"("})
	assert.ErrorContains(t, err, "invalid redaction pattern")
}
