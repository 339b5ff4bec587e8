package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/internal/testutils"
	vghttp "github.com/aretw0/verbgate/pkg/adapters/http"
	"github.com/aretw0/verbgate/pkg/adapters/memory"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/observability"
	"github.com/aretw0/verbgate/pkg/orchestrator"
	"github.com/aretw0/verbgate/pkg/pipeline"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/session"
	"github.com/aretw0/verbgate/pkg/trace"
)

type fixture struct {
	handler   http.Handler
	traces    *memory.TraceLog
	stager    *memory.Stager
	generator *testutils.Generator
	matcher   *testutils.Matcher
}

func newFixture(t *testing.T, mode domain.PolicyMode) *fixture {
	t.Helper()
	f := &fixture{
		traces: memory.NewTraceLog(),
		stager: memory.NewStager(),
		matcher: &testutils.Matcher{Results: map[string]ports.MatchResult{
			"send report":  testutils.Tie("report.send.v1", "report.send.v2"),
			"build report": testutils.Single("report.build.v1"),
			"purge":        testutils.Single("admin.purge.v1"),
		}},
		generator: &testutils.Generator{},
	}
	reg := testutils.NewRegistry(t, mode, "report.*")
	p := pipeline.New(reg, f.matcher, f.generator)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	orch := orchestrator.New(p,
		session.NewManager(memory.NewStore()),
		trace.NewRecorder(trace.WithSink(f.traces)),
		f.stager,
		orchestrator.WithHooks(metrics.Hooks()),
	)

	h, err := vghttp.NewHandler(orch,
		vghttp.WithVersion("test"),
		vghttp.WithMetrics(promhttp.Handler()),
	)
	require.NoError(t, err)
	f.handler = h
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, domain.OutcomeView) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var view domain.OutcomeView
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &view)
	}
	return w, view
}

func TestResolve_Direct(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"build report"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.KindDirect, view.Kind)
	assert.Equal(t, domain.FQN("report.build.v1"), view.Verb)
	assert.Len(t, f.stager.Staged("s1"), 1)
}

func TestResolve_Denied(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"purge"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, domain.KindNoAllowedVerbs, view.Kind)
	assert.Equal(t, []domain.FQN{"admin.purge.v1"}, view.Denied)
	assert.Equal(t, string(domain.ClassPolicy), view.ErrorCode)
	assert.NotContains(t, w.Body.String(), "report.*")
	assert.Empty(t, f.stager.All())
}

func TestResolve_NoMatch(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"hello"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(domain.ClassNoMatch), view.ErrorCode)
}

func TestResolve_UpstreamFailure(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)
	f.generator.Err = errors.New("model offline")

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"build report"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(domain.ClassUpstream), view.ErrorCode)
}

func TestResolve_BadRequests(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing utterance", `{"session_id":"s1"}`},
		{"empty session", `{"session_id":"","utterance":"x"}`},
		{"unknown field", `{"session_id":"s1","utterance":"x","verb":"admin.purge.v1"}`},
		{"too large", `{"session_id":"s1","utterance":"` + strings.Repeat("a", 5000) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, view := f.do(t, "POST", "/resolve", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(domain.ClassInput), view.ErrorCode)
		})
	}
	assert.Zero(t, f.matcher.Calls())
}

func TestResolve_StripsControlCharacters(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"build\u0007 report"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.KindDirect, view.Kind)
}

func TestClarifyThenReply(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"send report"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, domain.KindClarifyVerb, view.Kind)
	require.Len(t, view.Options, 2)

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest("GET", "/sessions/s1/pending", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), view.ChoiceID)
	assert.NotContains(t, w.Body.String(), "scope_snapshot")

	body, _ := json.Marshal(map[string]any{"session_id": "s1", "index": 1, "choice_id": view.ChoiceID})
	w, out := f.do(t, "POST", "/reply", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.FQN("report.send.v2"), out.Verb)
	assert.Equal(t, 1, f.matcher.Calls())

	w, out = f.do(t, "POST", "/reply", string(body))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(domain.ClassProtocol), out.ErrorCode)

	w, _ = f.do(t, "GET", "/sessions/s1/pending", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReply_InvalidIndex(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)
	_, view := f.do(t, "POST", "/resolve", `{"session_id":"s1","utterance":"send report"}`)
	require.Equal(t, domain.KindClarifyVerb, view.Kind)

	w, out := f.do(t, "POST", "/reply", `{"session_id":"s1","index":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(domain.ClassProtocol), out.ErrorCode)

	// The bad reply consumed the choice.
	w, _ = f.do(t, "GET", "/sessions/s1/pending", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacyRoute_Strict(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, _ := f.do(t, "POST", vghttp.LegacyRoute, `{"session_id":"s1","verb":"report.send.v1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.traces.Records())
	assert.Empty(t, f.generator.Asked())
}

func TestLegacyRoute_PermissiveTombstone(t *testing.T) {
	f := newFixture(t, domain.ModePermissive)

	w, _ := f.do(t, "POST", vghttp.LegacyRoute, `{"session_id":"s1","verb":"report.send.v1","utterance":"send"}`)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Empty(t, f.generator.Asked())
	assert.Empty(t, f.stager.All())

	recs := f.traces.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].LegacyBypassAttempt)
	assert.Equal(t, domain.SourceLegacy, *recs[0].SelectionSource)
	assert.Contains(t, w.Body.String(), recs[0].TraceID)
}

func TestInfoHealthAndSpec(t *testing.T) {
	f := newFixture(t, domain.ModeStrict)

	w, _ := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, "GET", "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, "strict", info["mode"])
	assert.True(t, strings.HasPrefix(info["policy_fingerprint"], "v1:"))

	w, _ = f.do(t, "GET", "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("openapi:")))

	w, _ = f.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		out  domain.Outcome
		want int
	}{
		{domain.Direct{}, http.StatusOK},
		{domain.ClarifyVerb{}, http.StatusOK},
		{domain.MacroExpanded{}, http.StatusOK},
		{domain.NoAllowedVerbs{}, http.StatusUnprocessableEntity},
		{domain.Failure{Err: domain.ErrNoPendingChoice}, http.StatusConflict},
		{domain.Failure{Err: domain.ErrInvalidChoiceIndex}, http.StatusBadRequest},
		{domain.Failure{Err: domain.ErrNoCandidates}, http.StatusNotFound},
		{domain.Failure{Err: &domain.UpstreamError{Collaborator: "matcher", Err: errors.New("x")}}, http.StatusBadGateway},
		{domain.Failure{Err: context.Canceled}, http.StatusServiceUnavailable},
		{domain.Failure{Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vghttp.StatusFor(tt.out), "%#v", tt.out)
	}
}
