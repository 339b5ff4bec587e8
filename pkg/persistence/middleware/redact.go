package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactingSink struct {
	next     ports.TraceSink
	patterns []*regexp.Regexp
}

// NewRedactingSink masks matches of patterns in a record's utterance before
// it reaches next. The caller's record is not modified.
func NewRedactingSink(next ports.TraceSink, patterns []string) (ports.TraceSink, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return &redactingSink{next: next, patterns: compiled}, nil
}

func (s *redactingSink) Append(ctx context.Context, rec domain.TraceRecord) error {
	cloned := rec.Clone()
	for _, p := range s.patterns {
		cloned.Utterance = p.ReplaceAllString(cloned.Utterance, Mask)
	}
	return s.next.Append(ctx, cloned)
}
