package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/pipeline"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
	"github.com/aretw0/verbgate/pkg/session"
	"github.com/aretw0/verbgate/pkg/trace"
)

// Input limits.
const (
	MaxSessionIDLength = 128
	MaxUtteranceLength = 4096
)

// ScopeFunc supplies the generation scope of a session.
type ScopeFunc func(ctx context.Context, sessionID string) map[string]any

// Orchestrator is the single entry point for governed verb resolution and the
// only component that stages DSL.
type Orchestrator struct {
	pipeline *pipeline.Pipeline
	sessions *session.Manager
	recorder *trace.Recorder
	stager   ports.Stager

	hooks  domain.LifecycleHooks
	scope  ScopeFunc
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Gate = (*Orchestrator)(nil)

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithScope sets how the generation scope of a session is obtained.
func WithScope(fn ScopeFunc) Option {
	return func(o *Orchestrator) {
		o.scope = fn
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(p *pipeline.Pipeline, sessions *session.Manager, recorder *trace.Recorder, stager ports.Stager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pipeline: p,
		sessions: sessions,
		recorder: recorder,
		stager:   stager,
		scope:    func(context.Context, string) map[string]any { return nil },
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the live policy snapshot.
func (o *Orchestrator) Policy() *semreg.Snapshot {
	return o.pipeline.Registry().Snapshot()
}

// Resolve turns a free-form utterance into an outcome for the session.
// Policy and protocol results are outcomes; the error is reserved for
// infrastructure failures (store, trace, stager, lock).
func (o *Orchestrator) Resolve(ctx context.Context, sessionID, utterance string) (domain.Outcome, error) {
	if err := validate(sessionID, utterance); err != nil {
		return domain.Failure{Err: err}, nil
	}

	start := o.now()
	var d decision
	err := o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		scope := o.scope(ctx, sessionID)
		res := o.pipeline.Run(ctx, pipeline.Request{Utterance: utterance, Scope: scope})
		var err error
		d, err = o.apply(ctx, sessionID, res, scope)
		return err
	})
	if err != nil {
		o.logger.Error("Resolve failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	o.emitDecision(ctx, domain.EventResolve, sessionID, d, start)
	return d.outcome, nil
}

// Reply answers the session's pending choice with the option at index.
// A non-empty choiceID must name the pending choice, otherwise the reply is stale.
func (o *Orchestrator) Reply(ctx context.Context, sessionID string, index int, choiceID string) (domain.Outcome, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.Failure{Err: err}, nil
	}

	start := o.now()
	var d decision
	err := o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		pending, err := o.sessions.LoadLocked(ctx, sessionID)
		if errors.Is(err, domain.ErrNoPendingChoice) {
			d = o.protocolFailure(ctx, sessionID, domain.ErrNoPendingChoice)
			return nil
		}
		if err != nil {
			return err
		}

		if choiceID != "" && choiceID != pending.ID {
			d = o.protocolFailure(ctx, sessionID, fmt.Errorf("%w: choice %s was superseded", domain.ErrNoPendingChoice, choiceID))
			return nil
		}

		// Consumed exactly once, whatever happens next, a bad index included.
		if err := o.sessions.DeleteLocked(ctx, sessionID); err != nil {
			return err
		}

		option, ok := pending.Option(index)
		if !ok {
			d = o.protocolFailure(ctx, sessionID, fmt.Errorf("%w: %d is not in [0, %d)", domain.ErrInvalidChoiceIndex, index, len(pending.Options)))
			return nil
		}

		forced := option.Verb
		res := o.pipeline.Run(ctx, pipeline.Request{
			Utterance:  pending.Utterance,
			Scope:      pending.Scope,
			ForcedVerb: &forced,
		})
		d, err = o.apply(ctx, sessionID, res, pending.Scope)
		return err
	})
	if err != nil {
		o.logger.Error("Reply failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	o.emitDecision(ctx, domain.EventReply, sessionID, d, start)
	return d.outcome, nil
}

// Pending returns the pending choice of a session, or domain.ErrNoPendingChoice.
func (o *Orchestrator) Pending(ctx context.Context, sessionID string) (*domain.PendingChoice, error) {
	return o.sessions.Load(ctx, sessionID)
}

// AuditLegacyAttempt records a call to the retired forced-verb endpoint. Nothing
// is generated or staged.
func (o *Orchestrator) AuditLegacyAttempt(ctx context.Context, sessionID string, verb domain.FQN, utterance string) (string, error) {
	snap := o.Policy()
	src := domain.SourceLegacy
	rec := domain.TraceRecord{
		SessionID:           sessionID,
		Utterance:           utterance,
		Outcome:             domain.KindFailure,
		SelectionSource:     &src,
		Reason:              "legacy forced-verb endpoint is retired",
		PolicyFingerprint:   snap.Fingerprint(),
		Mode:                snap.Mode(),
		LegacyBypassAttempt: true,
	}
	if verb != "" {
		rec.ForcedVerb = &verb
	}
	o.logger.Warn("Legacy forced-verb endpoint called",
		"session_id", sessionID,
		"verb", verb,
	)
	rec, err := o.recorder.Record(ctx, rec)
	return rec.TraceID, err
}

// decision is an applied outcome and the trace it was recorded under.
type decision struct {
	outcome domain.Outcome
	traceID string
}

// apply carries out the side effects of a pipeline result. Must run under the session lock.
func (o *Orchestrator) apply(ctx context.Context, sessionID string, res *pipeline.Result, scope map[string]any) (decision, error) {
	rec := res.Trace
	rec.SessionID = sessionID
	rec.TraceID = trace.NewID()

	switch out := res.Outcome.(type) {
	case domain.Direct:
		return o.stage(ctx, sessionID, res, rec, out.DSL)

	case domain.MacroExpanded:
		return o.stage(ctx, sessionID, res, rec, out.DSL)

	case domain.ClarifyVerb:
		pending := domain.NewPendingChoice(uuid.NewString(), rec.TraceID, rec.Utterance, scope, res.Candidates, o.now().UTC())
		if err := o.sessions.SaveLocked(ctx, sessionID, pending); err != nil {
			return decision{}, err
		}
		o.record(ctx, rec)
		return decision{
			outcome: domain.ClarifyVerb{ChoiceID: pending.ID, Options: pending.Options},
			traceID: rec.TraceID,
		}, nil

	case domain.NoAllowedVerbs:
		o.emitDeny(ctx, sessionID, rec.TraceID, out.Denied, rec.Mode)
		o.record(ctx, rec)
		return decision{outcome: out, traceID: rec.TraceID}, nil

	case domain.Failure:
		o.record(ctx, rec)
		return decision{outcome: out, traceID: rec.TraceID}, nil

	default:
		panic(fmt.Sprintf("orchestrator: unhandled outcome %T", out))
	}
}

// stage rechecks, traces and then stages. A trace failure stops staging.
func (o *Orchestrator) stage(ctx context.Context, sessionID string, res *pipeline.Result, rec domain.TraceRecord, dsl string) (decision, error) {
	status, ev := o.pipeline.Registry().Recheck(res.Snapshot, res.Verbs)
	rec.Recheck = status
	if status == semreg.RecheckDenied {
		reason := "policy changed before staging: " + ev.Reason()
		rec.Outcome = domain.KindNoAllowedVerbs
		rec.DeniedVerbs = ev.Denied
		rec.Reason = reason
		rec.DSLHash = ""
		o.emitDeny(ctx, sessionID, rec.TraceID, ev.Denied, rec.Mode)
		o.record(ctx, rec)
		return decision{
			outcome: domain.NoAllowedVerbs{Denied: ev.Denied, Reason: reason},
			traceID: rec.TraceID,
		}, nil
	}

	if _, err := o.recorder.Record(ctx, rec); err != nil {
		return decision{}, fmt.Errorf("failed to record trace before staging: %w", err)
	}

	staged := domain.StagedDSL{
		SessionID: sessionID,
		TraceID:   rec.TraceID,
		Verbs:     res.Verbs,
		DSL:       dsl,
		Source:    res.Source,
		StagedAt:  o.now().UTC(),
	}
	if err := o.stager.Stage(ctx, staged); err != nil {
		return decision{}, fmt.Errorf("failed to stage DSL (trace %s): %w", rec.TraceID, err)
	}
	o.logger.Info("DSL staged",
		"session_id", sessionID,
		"trace_id", rec.TraceID,
		"verbs", res.Verbs,
		"source", res.Source,
	)

	// A new decision supersedes any choice still on offer.
	if err := o.sessions.DeleteLocked(ctx, sessionID); err != nil {
		return decision{}, err
	}

	if o.hooks.OnStage != nil {
		o.hooks.OnStage(ctx, &domain.StageEvent{
			EventBase: o.base(domain.EventStage, sessionID, rec.TraceID),
			Verbs:     res.Verbs,
			Source:    res.Source,
		})
	}
	return decision{outcome: res.Outcome, traceID: rec.TraceID}, nil
}

func (o *Orchestrator) protocolFailure(ctx context.Context, sessionID string, err error) decision {
	snap := o.Policy()
	src := domain.SourceUserChoice
	rec := domain.TraceRecord{
		TraceID:           trace.NewID(),
		SessionID:         sessionID,
		Outcome:           domain.KindFailure,
		SelectionSource:   &src,
		Reason:            err.Error(),
		PolicyFingerprint: snap.Fingerprint(),
		Mode:              snap.Mode(),
	}
	o.record(ctx, rec)
	return decision{outcome: domain.Failure{Err: err}, traceID: rec.TraceID}
}

// record appends a trace for a non-staging decision. Failures are logged only:
// the decision itself already stands.
func (o *Orchestrator) record(ctx context.Context, rec domain.TraceRecord) {
	if _, err := o.recorder.Record(ctx, rec); err != nil {
		o.logger.Error("Failed to record trace", "trace_id", rec.TraceID, "err", err)
	}
}

func (o *Orchestrator) base(t domain.EventType, sessionID, traceID string) domain.EventBase {
	return domain.EventBase{
		Timestamp: o.now().UTC(),
		Type:      t,
		SessionID: sessionID,
		TraceID:   traceID,
	}
}

func (o *Orchestrator) emitDeny(ctx context.Context, sessionID, traceID string, denied []domain.FQN, mode domain.PolicyMode) {
	if o.hooks.OnDeny == nil {
		return
	}
	o.hooks.OnDeny(ctx, &domain.DenyEvent{
		EventBase: o.base(domain.EventDeny, sessionID, traceID),
		Denied:    denied,
		Mode:      mode,
	})
}

func (o *Orchestrator) emitDecision(ctx context.Context, t domain.EventType, sessionID string, d decision, start time.Time) {
	if o.hooks.OnDecision == nil {
		return
	}
	o.hooks.OnDecision(ctx, &domain.DecisionEvent{
		EventBase: o.base(t, sessionID, d.traceID),
		Outcome:   domain.OutcomeKind(d.outcome),
		Duration:  o.now().Sub(start),
	})
}

func validate(sessionID, utterance string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	switch {
	case utterance == "":
		return fmt.Errorf("%w: empty utterance", domain.ErrInvalidInput)
	case len(utterance) > MaxUtteranceLength:
		return fmt.Errorf("%w: utterance longer than %d bytes", domain.ErrInvalidInput, MaxUtteranceLength)
	case !utf8.ValidString(utterance):
		return fmt.Errorf("%w: utterance is not valid UTF-8", domain.ErrInvalidInput)
	}
	return nil
}

func validateSession(sessionID string) error {
	switch {
	case sessionID == "":
		return fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	case len(sessionID) > MaxSessionIDLength:
		return fmt.Errorf("%w: session id longer than %d bytes", domain.ErrInvalidInput, MaxSessionIDLength)
	case !utf8.ValidString(sessionID):
		return fmt.Errorf("%w: session id is not valid UTF-8", domain.ErrInvalidInput)
	}
	return nil
}
