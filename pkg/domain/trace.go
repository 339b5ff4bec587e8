package domain

import "time"

// TraceRecord is the append-only audit entry for one governed decision.
type TraceRecord struct {
	TraceID            string           `json:"trace_id"`
	SessionID          string           `json:"session_id,omitempty"`
	Utterance          string           `json:"utterance,omitempty"`
	Outcome            string           `json:"outcome"`
	Verb               FQN              `json:"verb,omitempty"`
	Verbs              []FQN            `json:"verbs,omitempty"`
	ForcedVerb         *FQN             `json:"forced_verb_fqn,omitempty"`
	SelectionSource    *SelectionSource `json:"selection_source,omitempty"`
	MacroSemRegChecked bool             `json:"macro_semreg_checked"`
	DeniedVerbs        []FQN            `json:"denied_verbs"`
	Reason             string           `json:"reason,omitempty"`
	DSLHash            string           `json:"dsl_hash,omitempty"`
	PolicyFingerprint  string           `json:"policy_fingerprint,omitempty"`
	Mode               PolicyMode       `json:"mode,omitempty"`
	// Recheck is the result of the pre-staging TOCTOU recheck: "still_allowed", "drifted", "denied".
	Recheck             string    `json:"toctou_result,omitempty"`
	LegacyBypassAttempt bool      `json:"legacy_bypass_attempt,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Clone returns a copy that does not share slices or pointers with r.
func (r TraceRecord) Clone() TraceRecord {
	c := r
	c.Verbs = append([]FQN(nil), r.Verbs...)
	c.DeniedVerbs = append([]FQN(nil), r.DeniedVerbs...)
	if r.ForcedVerb != nil {
		v := *r.ForcedVerb
		c.ForcedVerb = &v
	}
	if r.SelectionSource != nil {
		s := *r.SelectionSource
		c.SelectionSource = &s
	}
	return c
}

// StagedDSL is DSL that passed governance and is handed over for execution.
type StagedDSL struct {
	SessionID string          `json:"session_id"`
	TraceID   string          `json:"trace_id"`
	Verbs     []FQN           `json:"verbs"`
	DSL       string          `json:"dsl"`
	Source    SelectionSource `json:"source"`
	StagedAt  time.Time       `json:"staged_at"`
}
