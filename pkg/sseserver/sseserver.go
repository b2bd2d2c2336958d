// Package sseserver hosts an MCP server over HTTP: the SSE transport at /sse
// and the streamable HTTP transport at /mcp.
package sseserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/germanamz/claudeproxy/pkg/httpmw"
	"github.com/germanamz/claudeproxy/pkg/tools/mcpserver"
	"github.com/rs/zerolog"
)

// Paths the transports are mounted at.
const (
	SSEPath        = "/sse"
	StreamablePath = "/mcp"
)

// Server is the HTTP host for an MCPServer.
type Server struct {
	mcp     *mcpserver.MCPServer
	logger  zerolog.Logger
	metrics http.Handler
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a Server for srv.
func New(srv *mcpserver.MCPServer, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		mcp:     srv,
		logger:  logger,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(SSEPath, s.mcp.SSEHandler())
	mux.Handle(StreamablePath, s.mcp.StreamableHandler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpmw.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return httpmw.Chain(mux, httpmw.Standard(s.logger, s.origins)...)
}

// ListenAndServe serves on addr until ctx is cancelled. Open event streams
// are tied to ctx so they end when shutdown starts.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sseserver: listen %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("sse server listening")

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	return httpmw.Serve(ctx, srv, ln)
}
