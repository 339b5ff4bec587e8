package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventResolve EventType = "resolve"
	EventReply   EventType = "reply"
	EventDeny    EventType = "deny"
	EventStage   EventType = "stage"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	TraceID   string    `json:"trace_id"`
}

// DecisionEvent is emitted once per Resolve or Reply, after the outcome is applied.
type DecisionEvent struct {
	EventBase
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// DenyEvent is emitted for every SemReg denial.
type DenyEvent struct {
	EventBase
	Denied []FQN      `json:"denied"`
	Mode   PolicyMode `json:"mode"`
}

// StageEvent is emitted after DSL has been staged.
type StageEvent struct {
	EventBase
	Verbs  []FQN           `json:"verbs"`
	Source SelectionSource `json:"source"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnDecision func(context.Context, *DecisionEvent)
	OnDeny     func(context.Context, *DenyEvent)
	OnStage    func(context.Context, *StageEvent)
}
