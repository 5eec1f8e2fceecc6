package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/roster"
	"github.com/aretw0/roster/internal/logging"
	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ErrNotKillable is returned by kill_session for sessions that cannot be killed.
var ErrNotKillable = errors.New("session cannot be killed")

// Registry defines what the MCP server needs from the session registry.
type Registry interface {
	Stats() domain.Stats
	Infos(keep registry.Predicate) []domain.Info
	FindSessionByID(id uint64) domain.Session
}

// SessionList wraps the listing so the tool output is a JSON object.
type SessionList struct {
	Sessions []domain.Info `json:"sessions" jsonschema_description:"Live sessions in registration order"`
}

// ListArgs are the arguments of list_sessions.
type ListArgs struct {
	User string `json:"user,omitempty"`
}

// SessionArgs identify one session.
type SessionArgs struct {
	ID uint64 `json:"id"`
}

// Server exposes the registry as an MCP Server.
type Server struct {
	registry  Registry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for tool activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(reg Registry, opts ...Option) *Server {
	s := &Server{
		registry:  reg,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("roster-mcp", strings.TrimSpace(roster.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on the given port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop MCP server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live sessions in registration order."),
		mcp.WithString("user", mcp.Description("Only sessions of this user (optional)")),
		mcp.WithOutputSchema[SessionList](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	s.mcpServer.AddTool(mcp.NewTool("find_session",
		mcp.WithDescription("Describe one live session."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[domain.Info](),
	), mcp.NewStructuredToolHandler(s.handleFindSession))

	s.mcpServer.AddTool(mcp.NewTool("kill_session",
		mcp.WithDescription("Kill a live session. Its connection is closed and it leaves the registry shortly after."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[domain.Info](),
	), mcp.NewStructuredToolHandler(s.handleKillSession))

	s.mcpServer.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Get registry counters."),
		mcp.WithOutputSchema[domain.Stats](),
	), mcp.NewStructuredToolHandler(s.handleGetStats))
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest, args ListArgs) (SessionList, error) {
	var keep registry.Predicate
	if args.User != "" {
		keep = func(sess domain.Session) bool {
			return domain.Describe(sess).User == args.User
		}
	}
	infos := s.registry.Infos(keep)
	if infos == nil {
		infos = []domain.Info{}
	}
	return SessionList{Sessions: infos}, nil
}

func (s *Server) handleFindSession(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (domain.Info, error) {
	sess, err := s.find(args.ID)
	if err != nil {
		return domain.Info{}, err
	}
	return domain.Describe(sess), nil
}

func (s *Server) handleKillSession(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (domain.Info, error) {
	sess, err := s.find(args.ID)
	if err != nil {
		return domain.Info{}, err
	}
	k, ok := sess.(domain.Killable)
	if !ok {
		return domain.Info{}, fmt.Errorf("session %d: %w", args.ID, ErrNotKillable)
	}
	k.Kill()
	s.logger.Info("Session killed over MCP", "session_id", args.ID)
	return domain.Describe(sess), nil
}

func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest, args struct{}) (domain.Stats, error) {
	return s.registry.Stats(), nil
}

func (s *Server) find(id uint64) (domain.Session, error) {
	sess := s.registry.FindSessionByID(id)
	if sess == nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrSessionNotFound)
	}
	return sess, nil
}

func (s *Server) registerResources() {
	// EXPOSE: roster://sessions
	s.mcpServer.AddResource(mcp.NewResource("roster://sessions", "Live Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.registry.Infos(nil))
		if err != nil {
			return nil, fmt.Errorf("failed to encode sessions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "roster://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
