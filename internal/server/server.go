package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/lumenlearn/lumen/internal/auth"
	"github.com/lumenlearn/lumen/internal/ratelimit"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/service/assistant"
	"github.com/lumenlearn/lumen/internal/storage"
)

// Server is the Lumen HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	DB        *storage.DB
	JWTMgr    *auth.JWTManager
	Assistant *assistant.Service
	Index     *retrieval.Index
	Logger    *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// Embedding extension points. ExtraRoutes registrars run after the
	// built-in routes; Middlewares wrap the root handler outermost-first
	// in registration order.
	ExtraRoutes []func(mux *http.ServeMux)
	Middlewares []func(http.Handler) http.Handler

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte // Embedded OpenAPI YAML; nil disables /openapi.yaml.
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Assistant:           cfg.Assistant,
		Index:               cfg.Index,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// HTTP-layer burst limiting per subject, in front of the persistent
	// quota ledger. Fails open; the ledger is the billable backstop.
	rl := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc, reqIDFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Document assistant endpoints.
	mux.Handle("POST /v1/documents/{document_id}/messages", rl(http.HandlerFunc(h.HandleSendMessage)))
	mux.Handle("POST /v1/documents/{document_id}/sections/{section_id}/generate", rl(http.HandlerFunc(h.HandleGenerateSection)))

	// Usage (read-only, no rate limit).
	mux.Handle("GET /v1/orgs/{org_id}/usage", http.HandlerFunc(h.HandleOrgUsage))

	// Training-content endpoints.
	mux.Handle("POST /v1/training/enhance", rl(http.HandlerFunc(h.HandleEnhanceLesson)))
	mux.Handle("POST /v1/training/quiz", rl(http.HandlerFunc(h.HandleGenerateQuiz)))
	mux.Handle("POST /v1/training/scenario", rl(http.HandlerFunc(h.HandleGenerateScenario)))
	mux.Handle("POST /v1/training/flashcards", rl(http.HandlerFunc(h.HandleGenerateFlashcards)))
	mux.Handle("POST /v1/training/feedback", rl(http.HandlerFunc(h.HandleWrongAnswerFeedback)))
	mux.Handle("POST /v1/training/debrief", rl(http.HandlerFunc(h.HandleScenarioDebrief)))

	// MCP StreamableHTTP transport (auth required via middleware chain).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// API documentation (no auth, no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Embedder-supplied routes share the mux and the full middleware chain.
	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	// First-registered middleware ends up outermost.
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// subjectKeyFunc extracts the subject ID from the request context for rate
// limiting. Requests without claims are not limited here; they are rejected
// by auth middleware before reaching the limiter.
func subjectKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
