// Package http exposes the gate over a JSON HTTP API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/internal/sanitize"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
)

// maxBodyBytes bounds request bodies well above the utterance limit.
const maxBodyBytes = 64 << 10

// LegacyRoute is the retired forced-verb endpoint.
const LegacyRoute = "/generate-with-verb"

// Gateway is what the HTTP surface needs from the orchestrator.
type Gateway interface {
	ports.Gate
	Policy() *semreg.Snapshot
	AuditLegacyAttempt(ctx context.Context, sessionID string, verb domain.FQN, utterance string) (string, error)
}

// Server serves the gate's HTTP API.
type Server struct {
	gate    Gateway
	spec    *openapi3.T
	logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler builds the router for gate.
func NewHandler(gate Gateway, opts ...Option) (http.Handler, error) {
	doc, err := loadSpec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		gate:    gate,
		spec:    doc,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/resolve", s.Resolve)
	r.Post("/reply", s.Reply)
	r.Get("/sessions/{id}/pending", s.Pending)
	r.Get("/health", s.Health)
	r.Get("/info", s.Info)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post(LegacyRoute, s.Legacy)
	return r, nil
}

type resolveRequest struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

type replyRequest struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	ChoiceID  string `json:"choice_id"`
}

type legacyRequest struct {
	SessionID string     `json:"session_id"`
	Verb      domain.FQN `json:"verb"`
	Utterance string     `json:"utterance"`
}

type pendingView struct {
	ID        string                `json:"id"`
	Kind      domain.ChoiceKind     `json:"choice_kind"`
	Options   []domain.ChoiceOption `json:"options"`
	Utterance string                `json:"original_utterance"`
	TraceID   string                `json:"trace_id"`
	CreatedAt time.Time             `json:"created_at"`
}

type infoView struct {
	Version     string            `json:"version"`
	Mode        domain.PolicyMode `json:"mode"`
	Fingerprint string            `json:"policy_fingerprint"`
}

// Resolve handles POST /resolve.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if !s.decode(w, r, "ResolveRequest", &body) {
		return
	}
	utterance, err := sanitize.Input(body.Utterance)
	if err != nil {
		s.inputError(w, err)
		return
	}

	out, err := s.gate.Resolve(r.Context(), body.SessionID, utterance)
	if err != nil {
		s.internalError(w, "Resolve", err)
		return
	}
	s.writeOutcome(w, out)
}

// Reply handles POST /reply.
func (s *Server) Reply(w http.ResponseWriter, r *http.Request) {
	var body replyRequest
	if !s.decode(w, r, "ReplyRequest", &body) {
		return
	}

	out, err := s.gate.Reply(r.Context(), body.SessionID, body.Index, body.ChoiceID)
	if err != nil {
		s.internalError(w, "Reply", err)
		return
	}
	s.writeOutcome(w, out)
}

// Pending handles GET /sessions/{id}/pending.
func (s *Server) Pending(w http.ResponseWriter, r *http.Request) {
	choice, err := s.gate.Pending(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNoPendingChoice) {
		writeJSON(w, http.StatusNotFound, domain.Describe(domain.Failure{Err: err}))
		return
	}
	if err != nil {
		s.internalError(w, "Pending", err)
		return
	}
	writeJSON(w, http.StatusOK, pendingView{
		ID:        choice.ID,
		Kind:      choice.Kind,
		Options:   choice.Options,
		Utterance: choice.Utterance,
		TraceID:   choice.TraceID,
		CreatedAt: choice.CreatedAt,
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info. Only the policy identity is exposed, never the allow-list.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	snap := s.gate.Policy()
	writeJSON(w, http.StatusOK, infoView{
		Version:     s.version,
		Mode:        snap.Mode(),
		Fingerprint: snap.Fingerprint(),
	})
}

// Legacy handles the retired forced-verb endpoint. Under a strict policy the route
// does not exist. Under a permissive one the attempt is traced and refused; nothing
// is generated.
func (s *Server) Legacy(w http.ResponseWriter, r *http.Request) {
	if s.gate.Policy().Mode() != domain.ModePermissive {
		http.NotFound(w, r)
		return
	}

	var body legacyRequest
	if !s.decode(w, r, "LegacyRequest", &body) {
		return
	}
	traceID, err := s.gate.AuditLegacyAttempt(r.Context(), body.SessionID, body.Verb, body.Utterance)
	if err != nil {
		s.logger.Error("Legacy attempt could not be audited", "error", err)
	}
	writeJSON(w, http.StatusGone, map[string]string{
		"error":    "endpoint retired; use /resolve and /reply",
		"trace_id": traceID,
	})
}

// decode reads, schema-validates and unmarshals the body. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.inputError(w, fmt.Errorf("failed to read body: %w", err))
		return false
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		s.inputError(w, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	if err := validateBody(s.spec, schema, generic); err != nil {
		s.inputError(w, err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.inputError(w, err)
		return false
	}
	return true
}

func (s *Server) inputError(w http.ResponseWriter, err error) {
	s.logger.Warn("Request rejected", "error", err)
	writeJSON(w, http.StatusBadRequest, domain.Describe(domain.Failure{Err: fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)}))
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, domain.OutcomeView{
		Kind:      domain.KindFailure,
		Error:     "internal error",
		ErrorCode: string(domain.ClassInternal),
	})
}

func (s *Server) writeOutcome(w http.ResponseWriter, out domain.Outcome) {
	writeJSON(w, StatusFor(out), domain.Describe(out))
}

// StatusFor maps an outcome to its HTTP status code.
func StatusFor(out domain.Outcome) int {
	switch o := out.(type) {
	case domain.NoAllowedVerbs:
		return http.StatusUnprocessableEntity
	case domain.Failure:
		switch domain.Classify(o.Err) {
		case domain.ClassProtocol:
			if errors.Is(o.Err, domain.ErrInvalidChoiceIndex) {
				return http.StatusBadRequest
			}
			return http.StatusConflict
		case domain.ClassNoMatch:
			return http.StatusNotFound
		case domain.ClassUpstream:
			return http.StatusBadGateway
		case domain.ClassInput:
			return http.StatusBadRequest
		case domain.ClassPolicy:
			return http.StatusUnprocessableEntity
		case domain.ClassCanceled:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
