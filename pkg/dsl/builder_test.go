package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/pkg/domain"
)

func TestCall_String(t *testing.T) {
	got := NewCall("report.send.v1").
		Arg("to", []string{"ops@x.io"}).
		Arg("report", Ref("weekly")).
		Arg("urgent", true).
		Arg("retries", 3).
		Arg("note", `say "hi"`).
		String()

	assert.Equal(t, `(report.send.v1 :to ["ops@x.io"] :report @weekly :urgent true :retries 3 :note "say \"hi\"")`, got)

	ex := Extract(got)
	assert.False(t, ex.Ambiguous)
	assert.Equal(t, []domain.FQN{"report.send.v1"}, ex.Verbs)
}

func TestCall_ArgsSorted(t *testing.T) {
	got := NewCall("email.notify.v1").Args(map[string]any{"subject": "s", "body": "b"}).String()
	assert.Equal(t, `(email.notify.v1 :body "b" :subject "s")`, got)
}

func TestBuilder_Build(t *testing.T) {
	b := New()
	b.Add("report.build.v1").Arg("period", Ident("weekly"))
	b.Add("email.notify.v1").Arg("body", NewCall("report.summary.v1").Arg("for", Ref("w")))

	src, err := b.Build()
	require.NoError(t, err)

	ex := Extract(src)
	assert.Equal(t, []domain.FQN{"report.build.v1", "email.notify.v1", "report.summary.v1"}, ex.Verbs)
}

func TestBuilder_RejectsInvalidOutput(t *testing.T) {
	b := New()
	b.Add("report.send.v1").Arg("bad key", 1)
	_, err := b.Build()
	assert.ErrorIs(t, err, ErrSyntax)
}
