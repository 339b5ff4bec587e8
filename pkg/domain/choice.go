package domain

import (
	"maps"
	"time"
)

// ChoiceKind identifies what a pending choice disambiguates.
type ChoiceKind string

const (
	// ChoiceVerb asks the user to pick one verb out of several comparable candidates.
	ChoiceVerb ChoiceKind = "verb"
)

// ChoiceOption is one entry of an offered disambiguation.
type ChoiceOption struct {
	Index int    `json:"index"`
	Verb  FQN    `json:"verb_fqn"`
	Label string `json:"label,omitempty"`
}

// PendingChoice is the disambiguation offered to a session, awaiting a reply.
// Options are fixed at creation; a reply must reference this exact set.
type PendingChoice struct {
	// ID identifies this particular offer. A reply carrying a different ID is stale.
	ID        string         `json:"id"`
	Kind      ChoiceKind     `json:"choice_kind"`
	Options   []ChoiceOption `json:"options"`
	Utterance string         `json:"original_utterance"`
	Scope     map[string]any `json:"scope_snapshot,omitempty"`
	TraceID   string         `json:"trace_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewPendingChoice builds a verb choice from ranked candidates, indexing them in order.
func NewPendingChoice(id, traceID, utterance string, scope map[string]any, candidates []CandidateVerb, now time.Time) *PendingChoice {
	options := make([]ChoiceOption, len(candidates))
	for i, c := range candidates {
		options[i] = ChoiceOption{Index: i, Verb: c.Verb, Label: c.Label}
	}
	return &PendingChoice{
		ID:        id,
		Kind:      ChoiceVerb,
		Options:   options,
		Utterance: utterance,
		Scope:     maps.Clone(scope),
		TraceID:   traceID,
		CreatedAt: now,
	}
}

// Option returns the option at index i, or false when i is out of range.
func (p *PendingChoice) Option(i int) (ChoiceOption, bool) {
	if p == nil || i < 0 || i >= len(p.Options) {
		return ChoiceOption{}, false
	}
	return p.Options[i], true
}

// Clone returns a deep copy so callers can never alias stored options.
func (p *PendingChoice) Clone() *PendingChoice {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = append([]ChoiceOption(nil), p.Options...)
	c.Scope = maps.Clone(p.Scope)
	return &c
}

// Expired reports whether the choice is older than ttl. A zero ttl never expires.
func (p *PendingChoice) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}
