package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Denied   *prometheus.CounterVec
	Staged   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verbgate_outcomes_total",
				Help: "Outcomes returned by Resolve and Reply, by kind",
			},
			[]string{"kind"},
		),
		Denied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verbgate_denied_verbs_total",
				Help: "Verbs denied by the policy engine",
			},
			[]string{"verb"},
		),
		Staged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verbgate_staged_total",
				Help: "DSL blocks staged, by selection source",
			},
			[]string{"source"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verbgate_resolve_duration_seconds",
				Help:    "Latency of Resolve and Reply",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entry"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Outcomes, m.Denied, m.Staged, m.Duration)
	}
	return m
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			m.Outcomes.WithLabelValues(e.Outcome).Inc()
			m.Duration.WithLabelValues(string(e.Type)).Observe(e.Duration.Seconds())
		},
		OnDeny: func(_ context.Context, e *domain.DenyEvent) {
			for _, v := range e.Denied {
				m.Denied.WithLabelValues(string(v)).Inc()
			}
		},
		OnStage: func(_ context.Context, e *domain.StageEvent) {
			m.Staged.WithLabelValues(string(e.Source)).Inc()
		},
	}
}

// LogHooks returns hooks that log every event at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.DebugContext(ctx, "decision",
				"type", e.Type,
				"session_id", e.SessionID,
				"trace_id", e.TraceID,
				"outcome", e.Outcome,
				"duration", e.Duration,
			)
		},
		OnDeny: func(ctx context.Context, e *domain.DenyEvent) {
			logger.DebugContext(ctx, "deny", "session_id", e.SessionID, "trace_id", e.TraceID, "denied", e.Denied, "mode", e.Mode)
		},
		OnStage: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage", "session_id", e.SessionID, "trace_id", e.TraceID, "verbs", e.Verbs, "source", e.Source)
		},
	}
}

// Chain fans every event out to each set of hooks in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		if h.OnDecision != nil {
			prev, next := out.OnDecision, h.OnDecision
			out.OnDecision = func(ctx context.Context, e *domain.DecisionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
		if h.OnDeny != nil {
			prev, next := out.OnDeny, h.OnDeny
			out.OnDeny = func(ctx context.Context, e *domain.DenyEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
		if h.OnStage != nil {
			prev, next := out.OnStage, h.OnStage
			out.OnStage = func(ctx context.Context, e *domain.StageEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
	}
	return out
}
