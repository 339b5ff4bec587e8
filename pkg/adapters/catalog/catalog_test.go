package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/pkg/adapters/catalog"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/dsl"
)

func load(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := load(t)
	assert.Len(t, c.Verbs, 4)
	assert.Len(t, c.Macros, 1)
	assert.InDelta(t, 0.4, c.Margin, 1e-9)

	v, ok := c.Verb("report.send.v1")
	require.True(t, ok)
	assert.Equal(t, "pdf", v.Args["format"])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad fqn", "verbs:\n  - fqn: nodots\n"},
		{"duplicate verb", "verbs:\n  - fqn: a.b\n  - fqn: a.b\n"},
		{"macro name with space", "macros:\n  - name: two words\n    body: \"(a.b)\"\n"},
		{"malformed", "verbs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := catalog.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_DefaultMargin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"verbs":[{"fqn":"a.b","keywords":["x"]}]}`), 0o600))
	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultMargin, c.Margin)
}

func TestMatcher(t *testing.T) {
	m := catalog.NewMatcher(load(t))
	ctx := context.Background()

	t.Run("clear winner", func(t *testing.T) {
		res, err := m.Match(ctx, "Archive the old report please")
		require.NoError(t, err)
		require.NotEmpty(t, res.Candidates)
		assert.Equal(t, domain.FQN("report.archive.v1"), res.Candidates[0].Verb)
		assert.Equal(t, 1.0, res.Candidates[0].Score)
		assert.False(t, res.Ambiguous)
	})

	t.Run("comparable candidates", func(t *testing.T) {
		res, err := m.Match(ctx, "send the report")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(res.Candidates), 2)
		assert.Equal(t, domain.FQN("report.send.v1"), res.Candidates[0].Verb)
		assert.True(t, res.Ambiguous)
	})

	t.Run("phrase keyword", func(t *testing.T) {
		res, err := m.Match(ctx, "purge everything now")
		require.NoError(t, err)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, "Purge all data", res.Candidates[0].Label)

		res, err = m.Match(ctx, "everything purge")
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := m.Match(ctx, "hello there")
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
		assert.False(t, res.Ambiguous)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.Match(cctx, "send report")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGenerator(t *testing.T) {
	g := catalog.NewGenerator(load(t))
	ctx := context.Background()

	out, err := g.Generate(ctx, "report.send.v1", map[string]any{"tenant": "acme", "ignored": 1})
	require.NoError(t, err)
	assert.Equal(t, `(report.send.v1 :format "pdf" :tenant "acme")`, out)

	ex := dsl.Extract(out)
	assert.False(t, ex.Ambiguous)
	assert.Equal(t, []domain.FQN{"report.send.v1"}, ex.Verbs)

	_, err = g.Generate(ctx, "admin.drop.v9", nil)
	assert.ErrorIs(t, err, catalog.ErrUnknownVerb)
}

func TestGenerator_ScopeCannotInject(t *testing.T) {
	g := catalog.NewGenerator(load(t))

	out, err := g.Generate(context.Background(), "report.send.v2", map[string]any{
		"tenant": `acme") (admin.purge.v1`,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.FQN{"report.send.v2"}, dsl.Extract(out).Verbs)
}

func TestMacros(t *testing.T) {
	m := catalog.NewMacros(load(t))

	t.Run("lookup", func(t *testing.T) {
		name, ok := m.Lookup("/digest now")
		assert.True(t, ok)
		assert.Equal(t, "digest", name)

		name, ok = m.Lookup("  Weekly Digest ")
		assert.True(t, ok)
		assert.Equal(t, "digest", name)

		_, ok = m.Lookup("/unknown")
		assert.False(t, ok)

		_, ok = m.Lookup("send the weekly digest")
		assert.False(t, ok)
	})

	t.Run("expand", func(t *testing.T) {
		out, err := m.Expand(context.Background(), "digest", "/digest", map[string]any{"tenant": "acme"})
		require.NoError(t, err)
		assert.Contains(t, out, `:tenant "acme" :format "html"`)

		ex := dsl.Extract(out)
		assert.False(t, ex.Ambiguous)
		assert.Equal(t, []domain.FQN{"report.send.v1", "report.archive.v1"}, ex.Verbs)
	})

	t.Run("scope values are literals", func(t *testing.T) {
		out, err := m.Expand(context.Background(), "digest", "/digest", map[string]any{"tenant": `x") (admin.purge.v1 "`})
		require.NoError(t, err)
		assert.NotContains(t, dsl.Extract(out).Verbs, domain.FQN("admin.purge.v1"))
	})

	t.Run("missing scope", func(t *testing.T) {
		_, err := m.Expand(context.Background(), "digest", "/digest", nil)
		assert.ErrorContains(t, err, "tenant")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := m.Expand(context.Background(), "nope", "/nope", nil)
		assert.ErrorIs(t, err, catalog.ErrUnknownMacro)
	})
}
