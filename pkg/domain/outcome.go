package domain

import "fmt"

// Outcome is the result of one intent pipeline invocation.
// The set of variants is closed: Direct, ClarifyVerb, MacroExpanded, NoAllowedVerbs, Failure.
type Outcome interface {
	outcome()
}

// Direct is a single governed verb together with its generated DSL.
type Direct struct {
	Verb FQN
	DSL  string
}

// ClarifyVerb asks the caller to pick one of several comparable verbs.
// Offering a verb does not imply it is allowed; selecting it is checked again.
type ClarifyVerb struct {
	ChoiceID string
	Options  []ChoiceOption
}

// MacroExpanded is a macro expansion whose every extracted verb passed SemReg.
type MacroExpanded struct {
	Macro string
	DSL   string
	Verbs []FQN
}

// NoAllowedVerbs is a policy denial. Denied lists only the offending verbs.
type NoAllowedVerbs struct {
	Denied []FQN
	Reason string
	// Ambiguous is set when the denial comes from DSL the extractor could not classify.
	Ambiguous bool
}

// Failure is a non-policy error outcome (no candidates, protocol misuse, upstream failure).
type Failure struct {
	Err error
}

func (Direct) outcome()         {}
func (ClarifyVerb) outcome()    {}
func (MacroExpanded) outcome()  {}
func (NoAllowedVerbs) outcome() {}
func (Failure) outcome()        {}

// Err returns the denial as an error matching ErrNoAllowedVerbs.
func (n NoAllowedVerbs) Err() error {
	return &DenialError{Denied: n.Denied, Reason: n.Reason, Ambiguous: n.Ambiguous}
}

// Outcome kinds, as reported in traces, metrics and adapters.
const (
	KindDirect         = "direct"
	KindClarifyVerb    = "clarify_verb"
	KindMacroExpanded  = "macro_expanded"
	KindNoAllowedVerbs = "no_allowed_verbs"
	KindFailure        = "error"
)

// OutcomeKind returns the stable name of an outcome variant.
func OutcomeKind(o Outcome) string {
	switch o.(type) {
	case Direct:
		return KindDirect
	case ClarifyVerb:
		return KindClarifyVerb
	case MacroExpanded:
		return KindMacroExpanded
	case NoAllowedVerbs:
		return KindNoAllowedVerbs
	case Failure:
		return KindFailure
	default:
		panic(fmt.Sprintf("domain: unknown outcome variant %T", o))
	}
}

// OutcomeView is the wire representation shared by the HTTP and MCP adapters.
type OutcomeView struct {
	Kind      string         `json:"kind"`
	Verb      FQN            `json:"verb,omitempty"`
	DSL       string         `json:"dsl,omitempty"`
	Macro     string         `json:"macro,omitempty"`
	Verbs     []FQN          `json:"verbs,omitempty"`
	ChoiceID  string         `json:"choice_id,omitempty"`
	Options   []ChoiceOption `json:"options,omitempty"`
	Denied    []FQN          `json:"denied,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}

// Describe flattens an outcome into its wire view.
func Describe(o Outcome) OutcomeView {
	v := OutcomeView{Kind: OutcomeKind(o)}
	switch out := o.(type) {
	case Direct:
		v.Verb, v.DSL = out.Verb, out.DSL
	case ClarifyVerb:
		v.ChoiceID, v.Options = out.ChoiceID, out.Options
	case MacroExpanded:
		v.Macro, v.DSL, v.Verbs = out.Macro, out.DSL, out.Verbs
	case NoAllowedVerbs:
		v.Denied, v.Reason = out.Denied, out.Reason
		v.ErrorCode = string(ClassPolicy)
		if out.Ambiguous {
			v.Error = ErrExtractionAmbiguous.Error()
		} else {
			v.Error = ErrNoAllowedVerbs.Error()
		}
	case Failure:
		if out.Err != nil {
			v.Error = out.Err.Error()
		}
		v.ErrorCode = string(Classify(out.Err))
	}
	return v
}
