package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCandidates is returned when the matcher produced nothing for an utterance.
	ErrNoCandidates = errors.New("no verb candidates")

	// ErrNoAllowedVerbs is a SemReg denial.
	ErrNoAllowedVerbs = errors.New("no allowed verbs")

	// ErrNoPendingChoice is returned when a reply arrives with no (or a stale) pending choice.
	ErrNoPendingChoice = errors.New("no pending choice")

	// ErrInvalidChoiceIndex is returned when a reply index is outside the offered options.
	ErrInvalidChoiceIndex = errors.New("invalid choice index")

	// ErrExtractionAmbiguous is returned when generated DSL could not be soundly classified.
	ErrExtractionAmbiguous = errors.New("dsl extraction ambiguous")

	// ErrUpstream wraps failures of the matcher, generator or macro engine.
	ErrUpstream = errors.New("upstream failure")

	// ErrSessionNotFound is returned by stores when a session has no pending choice.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput is returned for malformed session ids or utterances.
	ErrInvalidInput = errors.New("invalid input")
)

// DenialError carries the verbs SemReg refused, and nothing about the allow-list itself.
type DenialError struct {
	Denied    []FQN
	Reason    string
	Ambiguous bool
}

func (e *DenialError) Error() string {
	names := make([]string, len(e.Denied))
	for i, v := range e.Denied {
		names[i] = string(v)
	}
	msg := fmt.Sprintf("denied verbs [%s]", strings.Join(names, ", "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrNoAllowedVerbs, and ErrExtractionAmbiguous for unclassifiable DSL.
func (e *DenialError) Is(target error) bool {
	if target == ErrNoAllowedVerbs {
		return true
	}
	return e.Ambiguous && target == ErrExtractionAmbiguous
}

// UpstreamError wraps a failure of an external collaborator.
type UpstreamError struct {
	Collaborator string // "matcher", "generator", "macro"
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass string

const (
	ClassPolicy   ErrorClass = "policy"
	ClassProtocol ErrorClass = "protocol"
	ClassNoMatch  ErrorClass = "no_match"
	ClassUpstream ErrorClass = "upstream"
	ClassInput    ErrorClass = "input"
	ClassCanceled ErrorClass = "canceled"
	ClassInternal ErrorClass = "internal"
)

// Classify maps an error onto the taxonomy.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAllowedVerbs), errors.Is(err, ErrExtractionAmbiguous):
		return ClassPolicy
	case errors.Is(err, ErrNoPendingChoice), errors.Is(err, ErrInvalidChoiceIndex):
		return ClassProtocol
	case errors.Is(err, ErrNoCandidates):
		return ClassNoMatch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, ErrUpstream):
		return ClassUpstream
	case errors.Is(err, ErrInvalidInput):
		return ClassInput
	default:
		return ClassInternal
	}
}
