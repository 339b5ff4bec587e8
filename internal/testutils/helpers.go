package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
)

// NewRegistry compiles a policy for tests.
// It fails the test immediately on error.
func NewRegistry(t *testing.T, mode domain.PolicyMode, allow ...string) *semreg.Registry {
	t.Helper()

	reg, err := semreg.NewRegistry(semreg.Policy{Mode: mode, Allow: allow})
	require.NoError(t, err, "Failed to compile test policy")
	return reg
}

// Matcher returns canned results per utterance and counts calls.
type Matcher struct {
	Results map[string]ports.MatchResult
	Err     error
	calls   atomic.Int64
}

// Match implements ports.Matcher.
func (m *Matcher) Match(ctx context.Context, utterance string) (ports.MatchResult, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return ports.MatchResult{}, m.Err
	}
	return m.Results[utterance], nil
}

// Calls returns how many times Match ran.
func (m *Matcher) Calls() int {
	return int(m.calls.Load())
}

// Single is a MatchResult with one clear winner.
func Single(verb domain.FQN) ports.MatchResult {
	return ports.MatchResult{Candidates: []domain.CandidateVerb{{Verb: verb, Score: 0.9}}}
}

// Tie is an ambiguous MatchResult over the given verbs.
func Tie(verbs ...domain.FQN) ports.MatchResult {
	res := ports.MatchResult{Ambiguous: true}
	for _, v := range verbs {
		res.Candidates = append(res.Candidates, domain.CandidateVerb{Verb: v, Label: string(v), Score: 0.5})
	}
	return res
}

// Generator renders "(verb)" and records what it was asked for.
// Extra is appended to the output for the verbs it names, simulating a generator
// that smuggles in calls.
type Generator struct {
	Extra map[domain.FQN]string
	Err   error

	// OnGenerate runs inside every Generate call.
	OnGenerate func()

	mu    sync.Mutex
	asked []domain.FQN
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, verb domain.FQN, scope map[string]any) (string, error) {
	g.mu.Lock()
	g.asked = append(g.asked, verb)
	g.mu.Unlock()
	if g.OnGenerate != nil {
		g.OnGenerate()
	}
	if g.Err != nil {
		return "", g.Err
	}
	out := fmt.Sprintf("(%s :scope %q)", verb, fmt.Sprint(scope["tenant"]))
	if extra, ok := g.Extra[verb]; ok {
		out += "\n" + extra
	}
	return out, nil
}

// Asked returns the verbs Generate was called with.
func (g *Generator) Asked() []domain.FQN {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.FQN(nil), g.asked...)
}

// Macros maps utterances starting with "/name" to fixed DSL.
type Macros struct {
	Bodies map[string]string
	Err    error
}

// Lookup implements ports.MacroEngine.
func (m *Macros) Lookup(utterance string) (string, bool) {
	name, ok := strings.CutPrefix(strings.TrimSpace(utterance), "/")
	if !ok {
		return "", false
	}
	name, _, _ = strings.Cut(name, " ")
	_, known := m.Bodies[name]
	return name, known
}

// Expand implements ports.MacroEngine.
func (m *Macros) Expand(ctx context.Context, name, utterance string, scope map[string]any) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Bodies[name], nil
}
