package domain

import (
	"regexp"
	"strings"
)

// FQN is the fully-qualified name of a verb, e.g. "report.send.v1".
type FQN string

// UnknownVerb is reported by the verb extractor for DSL it cannot classify.
// It is never a valid FQN, so the policy engine always denies it.
const UnknownVerb FQN = "<unknown>"

var fqnPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*(\.[A-Za-z0-9][A-Za-z0-9_-]*)+$`)

// ValidFQN reports whether s is a well-formed dotted verb name.
func ValidFQN(s string) bool {
	return fqnPattern.MatchString(s)
}

// Valid reports whether the FQN is well-formed.
func (f FQN) Valid() bool {
	return ValidFQN(string(f))
}

// Domain returns the segment before the first dot ("report" for "report.send.v1").
func (f FQN) Domain() string {
	s := string(f)
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return ""
}

func (f FQN) String() string {
	return string(f)
}

// CandidateVerb is a verb proposed by the matcher for a single utterance.
// It only lives for the duration of one pipeline invocation.
type CandidateVerb struct {
	Verb  FQN     `json:"verb"`
	Label string  `json:"label,omitempty"`
	Score float64 `json:"score"`
}

// UniqueFQNs returns the input without duplicates, keeping first-seen order.
func UniqueFQNs(verbs []FQN) []FQN {
	seen := make(map[FQN]struct{}, len(verbs))
	out := make([]FQN, 0, len(verbs))
	for _, v := range verbs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
