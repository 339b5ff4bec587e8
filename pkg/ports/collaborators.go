package ports

import (
	"context"

	"github.com/aretw0/verbgate/pkg/domain"
)

// MatchResult is the matcher's ranked view of an utterance.
type MatchResult struct {
	// Candidates are ordered best first.
	Candidates []domain.CandidateVerb

	// Ambiguous is the matcher's own judgement that the top candidates are comparable
	// and the user must choose. The threshold behind it belongs to the matcher.
	Ambiguous bool
}

// Matcher scores candidate verbs for a free-form utterance.
type Matcher interface {
	Match(ctx context.Context, utterance string) (MatchResult, error)
}

// Generator produces DSL for exactly one verb within a scope.
type Generator interface {
	Generate(ctx context.Context, verb domain.FQN, scope map[string]any) (string, error)
}

// MacroEngine recognises macro utterances and expands them into DSL blocks.
type MacroEngine interface {
	// Lookup returns the macro name an utterance invokes, if any.
	Lookup(utterance string) (string, bool)

	// Expand renders the named macro into DSL.
	Expand(ctx context.Context, name, utterance string, scope map[string]any) (string, error)
}
