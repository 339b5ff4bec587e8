package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/dsl"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
	"github.com/aretw0/verbgate/pkg/trace"
)

// Request is one pass through the pipeline.
type Request struct {
	Utterance string
	Scope     map[string]any

	// ForcedVerb skips discovery and macros. It is set by the orchestrator when
	// the user answered a pending choice.
	ForcedVerb *domain.FQN
}

// Result is the outcome of a pass plus everything the orchestrator needs to
// recheck, trace and stage it.
type Result struct {
	Outcome domain.Outcome

	// Trace is a draft: the orchestrator adds session, recheck and id before recording.
	Trace domain.TraceRecord

	// Snapshot is the policy the decision was made against.
	Snapshot *semreg.Snapshot

	// Verbs is the full set of verbs the staged DSL invokes.
	Verbs []domain.FQN

	// Candidates are set for ClarifyVerb outcomes.
	Candidates []domain.CandidateVerb

	Source domain.SelectionSource
}

// Pipeline turns utterances into governed outcomes. It never stages anything.
type Pipeline struct {
	registry  *semreg.Registry
	matcher   ports.Matcher
	generator ports.Generator
	macros    ports.MacroEngine

	trustGenerator bool
	logger         *slog.Logger
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithMacros enables the macro path.
func WithMacros(m ports.MacroEngine) Option {
	return func(p *Pipeline) {
		p.macros = m
	}
}

// WithTrustedGenerator skips re-extracting generated DSL. Only the requested verb is checked.
func WithTrustedGenerator(trusted bool) Option {
	return func(p *Pipeline) {
		p.trustGenerator = trusted
	}
}

// WithLogger configures a logger for the Pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline.
func New(registry *semreg.Registry, matcher ports.Matcher, generator ports.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  registry,
		matcher:   matcher,
		generator: generator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the policy registry the pipeline evaluates against.
func (p *Pipeline) Registry() *semreg.Registry {
	return p.registry
}

type state int

const (
	stateStart state = iota
	stateMatch
	stateMacro
	statePolicy
	stateGenerate
	stateVerify
	stateDone
)

// run carries one pass through the state machine.
type run struct {
	req  Request
	snap *semreg.Snapshot
	res  *Result

	macro string
	verb  domain.FQN
	dsl   string
}

// Run executes a pass. It always returns an outcome; failures are Failure outcomes.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	snap := p.registry.Snapshot()
	r := &run{
		req:  req,
		snap: snap,
		res: &Result{
			Snapshot: snap,
			Trace: domain.TraceRecord{
				Utterance:         req.Utterance,
				PolicyFingerprint: snap.Fingerprint(),
				Mode:              snap.Mode(),
			},
		},
	}

	for st := stateStart; st != stateDone; {
		if err := ctx.Err(); err != nil {
			r.fail(err)
			break
		}
		st = p.step(ctx, st, r)
	}

	r.res.Trace.Outcome = domain.OutcomeKind(r.res.Outcome)
	return r.res
}

func (p *Pipeline) step(ctx context.Context, st state, r *run) state {
	switch st {
	case stateStart:
		switch {
		case r.req.ForcedVerb != nil:
			r.verb = *r.req.ForcedVerb
			r.setSource(domain.SourceUserChoice)
			forced := r.verb
			r.res.Trace.ForcedVerb = &forced
			return statePolicy
		case p.macros != nil:
			if name, ok := p.macros.Lookup(r.req.Utterance); ok {
				r.macro = name
				r.setSource(domain.SourceMacro)
				return stateMacro
			}
		}
		r.setSource(domain.SourceDiscovery)
		return stateMatch

	case stateMatch:
		return p.match(ctx, r)

	case stateMacro:
		return p.expand(ctx, r)

	case statePolicy:
		r.res.Trace.Verb = r.verb
		ev := r.snap.Evaluate([]domain.FQN{r.verb})
		if !ev.Permit() {
			p.deny(ctx, r, ev, false)
			return stateDone
		}
		return stateGenerate

	case stateGenerate:
		out, err := p.generator.Generate(ctx, r.verb, r.req.Scope)
		if err != nil {
			r.upstream(ctx, "generator", err)
			return stateDone
		}
		if out == "" {
			r.upstream(ctx, "generator", errors.New("generated empty DSL"))
			return stateDone
		}
		r.dsl = out
		return stateVerify

	case stateVerify:
		return p.verify(ctx, r)
	}
	r.fail(fmt.Errorf("pipeline reached unknown state %d", st))
	return stateDone
}

func (p *Pipeline) match(ctx context.Context, r *run) state {
	m, err := p.matcher.Match(ctx, r.req.Utterance)
	if err != nil {
		r.upstream(ctx, "matcher", err)
		return stateDone
	}
	if len(m.Candidates) == 0 {
		r.fail(domain.ErrNoCandidates)
		return stateDone
	}
	if m.Ambiguous && len(m.Candidates) > 1 {
		options := make([]domain.ChoiceOption, len(m.Candidates))
		for i, c := range m.Candidates {
			options[i] = domain.ChoiceOption{Index: i, Verb: c.Verb, Label: c.Label}
		}
		r.res.Candidates = m.Candidates
		r.res.Outcome = domain.ClarifyVerb{Options: options}
		return stateDone
	}
	r.verb = m.Candidates[0].Verb
	return statePolicy
}

func (p *Pipeline) expand(ctx context.Context, r *run) state {
	r.res.Trace.MacroSemRegChecked = true

	out, err := p.macros.Expand(ctx, r.macro, r.req.Utterance, r.req.Scope)
	if err != nil {
		r.upstream(ctx, "macro", err)
		return stateDone
	}

	ex := dsl.Extract(out)
	r.res.Trace.Verbs = ex.Verbs
	ev := r.snap.Evaluate(ex.Verbs)
	if !ev.Permit() {
		// A macro with no calls at all is as unexplainable as one we cannot parse.
		p.deny(ctx, r, ev, ex.Ambiguous || len(ex.Verbs) == 0)
		return stateDone
	}

	r.dsl = out
	r.res.Verbs = ev.Allowed
	r.res.Trace.DSLHash = trace.HashDSL(out)
	r.res.Outcome = domain.MacroExpanded{Macro: r.macro, DSL: out, Verbs: ev.Allowed}
	return stateDone
}

// verify checks the generated DSL. Unless the generator is trusted, every verb it
// contains is evaluated, not only the one that was asked for.
func (p *Pipeline) verify(ctx context.Context, r *run) state {
	verbs := []domain.FQN{r.verb}
	ambiguous := false
	if !p.trustGenerator {
		ex := dsl.Extract(r.dsl)
		verbs = domain.UniqueFQNs(append(verbs, ex.Verbs...))
		ambiguous = ex.Ambiguous
	}
	r.res.Trace.Verbs = verbs

	ev := r.snap.Evaluate(verbs)
	if !ev.Permit() {
		p.deny(ctx, r, ev, ambiguous)
		return stateDone
	}

	r.res.Verbs = ev.Allowed
	r.res.Trace.DSLHash = trace.HashDSL(r.dsl)
	r.res.Outcome = domain.Direct{Verb: r.verb, DSL: r.dsl}
	return stateDone
}

func (p *Pipeline) deny(ctx context.Context, r *run, ev semreg.Evaluation, ambiguous bool) {
	reason := ev.Reason()
	if ambiguous {
		reason = fmt.Sprintf("%s: %s", domain.ErrExtractionAmbiguous, reason)
	}
	level := slog.LevelWarn
	if r.snap.Mode() == domain.ModePermissive {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "SemReg denied verbs",
		"denied", ev.Denied,
		"mode", r.snap.Mode(),
		"source", r.res.Source,
	)

	r.res.Trace.DeniedVerbs = ev.Denied
	r.res.Trace.Reason = reason
	r.res.Outcome = domain.NoAllowedVerbs{Denied: ev.Denied, Reason: reason, Ambiguous: ambiguous}
}

func (r *run) setSource(src domain.SelectionSource) {
	r.res.Source = src
	r.res.Trace.SelectionSource = &src
}

func (r *run) fail(err error) {
	r.res.Trace.Reason = err.Error()
	r.res.Outcome = domain.Failure{Err: err}
}

func (r *run) upstream(ctx context.Context, collaborator string, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.fail(ctxErr)
		return
	}
	r.fail(&domain.UpstreamError{Collaborator: collaborator, Err: err})
}
