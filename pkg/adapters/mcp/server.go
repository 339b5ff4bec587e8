// Package mcp exposes the gate as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/internal/sanitize"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
)

// PolicyURI is the resource describing the active policy.
const PolicyURI = "verbgate://policy"

// Gateway is what the MCP surface needs from the orchestrator.
type Gateway interface {
	ports.Gate
	Policy() *semreg.Snapshot
}

// PolicyView is the content of the policy resource. The allow-list is not part of it.
type PolicyView struct {
	Mode        domain.PolicyMode `json:"mode"`
	Fingerprint string            `json:"policy_fingerprint"`
}

type resolveArgs struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

type replyArgs struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	ChoiceID  string `json:"choice_id"`
}

// Server wraps the gate and exposes it as an MCP server.
type Server struct {
	gate      Gateway
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server named after version.
func NewServer(gate Gateway, version string, opts ...Option) *Server {
	s := &Server{
		gate:      gate,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("verbgate", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	resolve := mcp.NewTool("resolve_utterance",
		mcp.WithDescription("Resolve a free-form request into governed DSL. May ask the user to choose between verbs."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("What the user asked for")),
		mcp.WithOutputSchema[domain.OutcomeView](),
	)
	s.mcpServer.AddTool(resolve, mcp.NewStructuredToolHandler(s.handleResolve))

	reply := mcp.NewTool("reply_choice",
		mcp.WithDescription("Answer the session's pending verb choice by option index."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the chosen option")),
		mcp.WithString("choice_id", mcp.Description("Id of the choice being answered; rejects stale replies")),
		mcp.WithOutputSchema[domain.OutcomeView](),
	)
	s.mcpServer.AddTool(reply, mcp.NewStructuredToolHandler(s.handleReply))
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest, args resolveArgs) (domain.OutcomeView, error) {
	clean, err := sanitize.Input(args.Utterance)
	if err != nil {
		s.logger.Warn("MCP resolve: input rejected", "error", err, "size", len(args.Utterance))
		return domain.Describe(domain.Failure{Err: fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)}), nil
	}
	out, err := s.gate.Resolve(ctx, args.SessionID, clean)
	if err != nil {
		return domain.OutcomeView{}, fmt.Errorf("resolve failed: %w", err)
	}
	return domain.Describe(out), nil
}

func (s *Server) handleReply(ctx context.Context, request mcp.CallToolRequest, args replyArgs) (domain.OutcomeView, error) {
	out, err := s.gate.Reply(ctx, args.SessionID, args.Index, args.ChoiceID)
	if err != nil {
		return domain.OutcomeView{}, fmt.Errorf("reply failed: %w", err)
	}
	return domain.Describe(out), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(PolicyURI, "Active policy",
		mcp.WithResourceDescription("Mode and fingerprint of the verb policy in force"),
		mcp.WithMIMEType("application/json"),
	), s.readPolicy)
}

func (s *Server) readPolicy(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap := s.gate.Policy()
	data, err := json.Marshal(PolicyView{Mode: snap.Mode(), Fingerprint: snap.Fingerprint()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PolicyURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
