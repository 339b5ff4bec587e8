package semreg

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/domain"
)

// Registry holds the live policy snapshot.
// Safe for concurrent use.
type Registry struct {
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for policy swaps and rechecks.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry compiles the initial policy.
func NewRegistry(p Policy, opts ...Option) (*Registry, error) {
	snap, err := Compile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy: %w", err)
	}
	r := &Registry{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(snap)
	return r, nil
}

// Snapshot returns the live snapshot. Callers pin it for a whole invocation.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Replace compiles and atomically installs a new policy.
// On error the previous policy stays in force.
func (r *Registry) Replace(p Policy) error {
	snap, err := Compile(p)
	if err != nil {
		return fmt.Errorf("failed to compile policy: %w", err)
	}
	old := r.current.Swap(snap)
	r.logger.Info("SemReg policy replaced",
		"mode", snap.Mode(),
		"old_fingerprint", old.Fingerprint(),
		"new_fingerprint", snap.Fingerprint(),
	)
	return nil
}

// Recheck results.
const (
	RecheckStillAllowed = "still_allowed"
	RecheckDrifted      = "drifted"
	RecheckDenied       = "denied"
)

// Recheck re-evaluates verbs right before staging. When the live policy is the pinned one
// nothing can have changed; otherwise the live policy decides, even if its fingerprint
// matches the pinned one.
func (r *Registry) Recheck(pinned *Snapshot, verbs []domain.FQN) (string, Evaluation) {
	live := r.Snapshot()
	if live == pinned {
		return RecheckStillAllowed, pinned.Evaluate(verbs)
	}
	ev := live.Evaluate(verbs)
	if !ev.Permit() {
		r.logger.Warn("SemReg recheck denied verbs after policy drift",
			"denied", ev.Denied,
			"pinned_fingerprint", pinned.Fingerprint(),
			"live_fingerprint", live.Fingerprint(),
		)
		return RecheckDenied, ev
	}
	if live.Fingerprint() == pinned.Fingerprint() {
		return RecheckStillAllowed, ev
	}
	return RecheckDrifted, ev
}
