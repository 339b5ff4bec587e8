package semreg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/google/cel-go/cel"
)

// Rule is a CEL deny rule evaluated against every verb that passed the allow-list.
// The expression sees two string variables, verb and domain; when it yields true the verb is denied.
type Rule struct {
	ID         string `yaml:"id" json:"id" mapstructure:"id"`
	Expression string `yaml:"expression" json:"expression" mapstructure:"expression"`
	Reason     string `yaml:"reason" json:"reason" mapstructure:"reason"`
}

// Policy is the declarative form of a SemReg configuration.
type Policy struct {
	Mode  domain.PolicyMode `yaml:"mode" json:"mode" mapstructure:"mode"`
	Allow []string          `yaml:"allow" json:"allow" mapstructure:"allow"`
	Rules []Rule            `yaml:"rules" json:"rules" mapstructure:"rules"`
}

type compiledRule struct {
	id     string
	expr   string
	reason string
	prg    cel.Program
}

// Snapshot is an immutable, compiled policy.
type Snapshot struct {
	mode        domain.PolicyMode
	exact       map[domain.FQN]struct{}
	domains     map[string]struct{}
	rules       []compiledRule
	fingerprint string
}

// Compile validates a policy and prepares it for evaluation.
func Compile(p Policy) (*Snapshot, error) {
	mode, err := domain.ParsePolicyMode(string(p.Mode))
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		mode:    mode,
		exact:   make(map[domain.FQN]struct{}),
		domains: make(map[string]struct{}),
	}

	for _, entry := range p.Allow {
		entry = strings.TrimSpace(entry)
		if d, ok := strings.CutSuffix(entry, ".*"); ok {
			if !domain.ValidFQN(d+".x") || strings.Contains(d, ".") {
				return nil, fmt.Errorf("invalid wildcard allow entry %q: only a single domain may be wildcarded", entry)
			}
			s.domains[d] = struct{}{}
			continue
		}
		if !domain.ValidFQN(entry) {
			return nil, fmt.Errorf("invalid allow entry %q", entry)
		}
		s.exact[domain.FQN(entry)] = struct{}{}
	}

	if len(p.Rules) > 0 {
		env, err := cel.NewEnv(
			cel.Variable("verb", cel.StringType),
			cel.Variable("domain", cel.StringType),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create rule environment: %w", err)
		}
		seen := make(map[string]struct{}, len(p.Rules))
		for _, r := range p.Rules {
			if r.ID == "" {
				return nil, fmt.Errorf("rule with expression %q has no id", r.Expression)
			}
			if _, dup := seen[r.ID]; dup {
				return nil, fmt.Errorf("duplicate rule id %q", r.ID)
			}
			seen[r.ID] = struct{}{}

			ast, issues := env.Compile(r.Expression)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("rule %q: %w", r.ID, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.ID, err)
			}
			reason := r.Reason
			if reason == "" {
				reason = "denied by rule " + r.ID
			}
			s.rules = append(s.rules, compiledRule{id: r.ID, expr: r.Expression, reason: reason, prg: prg})
		}
	}

	s.fingerprint = fingerprint(s)
	return s, nil
}

// fingerprint hashes the sorted allow-list and rules: "v1:<sha256 hex>".
// A rule counts with its expression and reason, so editing one under the same id changes it.
func fingerprint(s *Snapshot) string {
	entries := make([]string, 0, len(s.exact)+len(s.domains)+len(s.rules))
	for v := range s.exact {
		entries = append(entries, "allow:"+string(v))
	}
	for d := range s.domains {
		entries = append(entries, "allow:"+d+".*")
	}
	for _, r := range s.rules {
		entries = append(entries, "rule:"+r.id+"\x00"+r.expr+"\x00"+r.reason)
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	return "v1:" + hex.EncodeToString(h.Sum(nil))
}

// Mode returns the policy mode of the snapshot.
func (s *Snapshot) Mode() domain.PolicyMode {
	return s.mode
}

// Fingerprint identifies the allow-list contents without revealing them.
func (s *Snapshot) Fingerprint() string {
	return s.fingerprint
}

// Allows reports whether a single verb is allowed, with the reason when it is not.
func (s *Snapshot) Allows(v domain.FQN) (bool, string) {
	if !v.Valid() {
		return false, "unclassifiable verb"
	}
	_, exact := s.exact[v]
	_, byDomain := s.domains[v.Domain()]
	if !exact && !byDomain {
		return false, "not in allow-list"
	}
	for _, r := range s.rules {
		out, _, err := r.prg.Eval(map[string]any{
			"verb":   string(v),
			"domain": v.Domain(),
		})
		if err != nil {
			return false, fmt.Sprintf("rule %s failed: %v", r.id, err)
		}
		deny, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Sprintf("rule %s returned %T", r.id, out.Value())
		}
		if deny {
			return false, r.reason
		}
	}
	return true, ""
}

// Evaluation is the result of checking a set of verbs.
type Evaluation struct {
	Allowed []domain.FQN
	Denied  []domain.FQN
	Reasons map[domain.FQN]string
}

// Evaluate checks every verb against the snapshot. Input order is kept and duplicates dropped.
func (s *Snapshot) Evaluate(verbs []domain.FQN) Evaluation {
	ev := Evaluation{
		Allowed: []domain.FQN{},
		Denied:  []domain.FQN{},
		Reasons: map[domain.FQN]string{},
	}
	for _, v := range domain.UniqueFQNs(verbs) {
		if ok, reason := s.Allows(v); ok {
			ev.Allowed = append(ev.Allowed, v)
		} else {
			ev.Denied = append(ev.Denied, v)
			ev.Reasons[v] = reason
		}
	}
	return ev
}

// Permit reports whether staging may proceed: at least one verb was checked and none was denied.
// There is no mode in which a denied verb is let through.
func (e Evaluation) Permit() bool {
	return len(e.Denied) == 0 && len(e.Allowed) > 0
}

// Reason summarises why the evaluation did not permit staging.
func (e Evaluation) Reason() string {
	if len(e.Denied) == 0 {
		if len(e.Allowed) == 0 {
			return "no verbs to evaluate"
		}
		return ""
	}
	parts := make([]string, 0, len(e.Denied))
	for _, v := range e.Denied {
		parts = append(parts, fmt.Sprintf("%s: %s", v, e.Reasons[v]))
	}
	return strings.Join(parts, "; ")
}
