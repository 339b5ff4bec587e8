package semreg

import (
	"testing"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Evaluate(t *testing.T) {
	snap, err := Compile(Policy{
		Mode:  domain.ModeStrict,
		Allow: []string{"report.send.v1", "email.*"},
	})
	require.NoError(t, err)

	tests := []struct {
		name        string
		verbs       []domain.FQN
		wantAllowed []domain.FQN
		wantDenied  []domain.FQN
		wantPermit  bool
	}{
		{
			name:        "exact match",
			verbs:       []domain.FQN{"report.send.v1"},
			wantAllowed: []domain.FQN{"report.send.v1"},
			wantDenied:  []domain.FQN{},
			wantPermit:  true,
		},
		{
			name:        "domain wildcard",
			verbs:       []domain.FQN{"email.notify.v1"},
			wantAllowed: []domain.FQN{"email.notify.v1"},
			wantDenied:  []domain.FQN{},
			wantPermit:  true,
		},
		{
			name:        "mixed set is not permitted",
			verbs:       []domain.FQN{"report.send.v1", "report.send.v2"},
			wantAllowed: []domain.FQN{"report.send.v1"},
			wantDenied:  []domain.FQN{"report.send.v2"},
			wantPermit:  false,
		},
		{
			name:        "duplicates collapse, order kept",
			verbs:       []domain.FQN{"cbu.create", "report.send.v1", "cbu.create"},
			wantAllowed: []domain.FQN{"report.send.v1"},
			wantDenied:  []domain.FQN{"cbu.create"},
			wantPermit:  false,
		},
		{
			name:        "unknown verb sentinel is always denied",
			verbs:       []domain.FQN{domain.UnknownVerb},
			wantAllowed: []domain.FQN{},
			wantDenied:  []domain.FQN{domain.UnknownVerb},
			wantPermit:  false,
		},
		{
			name:        "empty set does not permit",
			verbs:       nil,
			wantAllowed: []domain.FQN{},
			wantDenied:  []domain.FQN{},
			wantPermit:  false,
		},
		{
			name:        "wildcard does not cover a bare domain",
			verbs:       []domain.FQN{"email"},
			wantAllowed: []domain.FQN{},
			wantDenied:  []domain.FQN{"email"},
			wantPermit:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := snap.Evaluate(tt.verbs)
			assert.Equal(t, tt.wantAllowed, ev.Allowed)
			assert.Equal(t, tt.wantDenied, ev.Denied)
			assert.Equal(t, tt.wantPermit, ev.Permit())
		})
	}
}

func TestSnapshot_PermissiveStillDenies(t *testing.T) {
	snap, err := Compile(Policy{Mode: domain.ModePermissive, Allow: []string{"a.b"}})
	require.NoError(t, err)

	ev := snap.Evaluate([]domain.FQN{"a.b", "c.d"})
	assert.False(t, ev.Permit(), "permissive mode must never let a denied verb through")
	assert.Equal(t, []domain.FQN{"c.d"}, ev.Denied)
	assert.Contains(t, ev.Reason(), "c.d")
	assert.NotContains(t, ev.Reason(), "a.b", "reason must not leak allowed verbs")
}

func TestSnapshot_Rules(t *testing.T) {
	snap, err := Compile(Policy{
		Allow: []string{"report.*", "email.*"},
		Rules: []Rule{
			{ID: "no-v1-email", Expression: `domain == "email" && verb.endsWith(".v1")`, Reason: "email v1 is retired"},
		},
	})
	require.NoError(t, err)

	ok, reason := snap.Allows("email.notify.v1")
	assert.False(t, ok)
	assert.Equal(t, "email v1 is retired", reason)

	ok, _ = snap.Allows("email.notify.v2")
	assert.True(t, ok)

	ok, _ = snap.Allows("report.send.v1")
	assert.True(t, ok)
}

func TestSnapshot_RuleFailsClosed(t *testing.T) {
	snap, err := Compile(Policy{
		Allow: []string{"report.*"},
		Rules: []Rule{
			// Type-checks, but fails at runtime.
			{ID: "div-zero", Expression: `verb.size() / 0 > 0`},
		},
	})
	require.NoError(t, err)

	ok, reason := snap.Allows("report.send.v1")
	assert.False(t, ok)
	assert.Contains(t, reason, "div-zero")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"unknown mode", Policy{Mode: "lenient"}},
		{"malformed entry", Policy{Allow: []string{"not a verb"}}},
		{"allow everything", Policy{Allow: []string{"*"}}},
		{"nested wildcard", Policy{Allow: []string{"report.send.*"}}},
		{"rule without id", Policy{Rules: []Rule{{Expression: "true"}}}},
		{"duplicate rule", Policy{Rules: []Rule{{ID: "a", Expression: "true"}, {ID: "a", Expression: "false"}}}},
		{"bad expression", Policy{Rules: []Rule{{ID: "a", Expression: "verb ==="}}}},
		{"unknown variable", Policy{Rules: []Rule{{ID: "a", Expression: "tenant == 'x'"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.policy)
			assert.Error(t, err)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Compile(Policy{Allow: []string{"a.b", "c.d"}})
	require.NoError(t, err)
	b, err := Compile(Policy{Allow: []string{"c.d", "a.b"}, Mode: domain.ModePermissive})
	require.NoError(t, err)
	c, err := Compile(Policy{Allow: []string{"a.b"}})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "order must not matter")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Regexp(t, `^v1:[0-9a-f]{64}$`, a.Fingerprint())

	r1, err := Compile(Policy{Allow: []string{"a.b"}, Rules: []Rule{{ID: "r1", Expression: "false"}}})
	require.NoError(t, err)
	r2, err := Compile(Policy{Allow: []string{"a.b"}, Rules: []Rule{{ID: "r1", Expression: "verb == 'a.b'"}}})
	require.NoError(t, err)
	r3, err := Compile(Policy{Allow: []string{"a.b"}, Rules: []Rule{{ID: "r1", Expression: "false", Reason: "retired"}}})
	require.NoError(t, err)
	assert.NotEqual(t, r1.Fingerprint(), r2.Fingerprint(), "expression is part of the fingerprint")
	assert.NotEqual(t, r1.Fingerprint(), r3.Fingerprint(), "reason is part of the fingerprint")
	assert.NotEqual(t, c.Fingerprint(), r1.Fingerprint())
}
