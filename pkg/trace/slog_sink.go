package trace

import (
	"context"
	"log/slog"

	"github.com/aretw0/verbgate/pkg/domain"
)

// LogSink writes each record as a single structured log line, typically to a JSON handler
// dedicated to audit output.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that writes to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Append implements ports.TraceSink.
func (s *LogSink) Append(ctx context.Context, rec domain.TraceRecord) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "trace",
		slog.String("trace_id", rec.TraceID),
		slog.Any("record", rec),
	)
	return nil
}
