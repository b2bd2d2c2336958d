// Package restapi serves the tool envelope over plain HTTP: a status route,
// tool listing and POST /mcp/v1/call_tool dispatching to a toolbox.
package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/germanamz/claudeproxy/pkg/httpmw"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds call_tool request bodies.
const maxBodyBytes = 1 << 20

// Info is reported by GET /.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type statusResponse struct {
	Info
	Status string `json:"status"`
}

type toolsResponse struct {
	Tools []toolbox.Descriptor `json:"tools"`
}

type callRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Content is one item of a call_tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResponse is the body of a successful call_tool.
type CallResponse struct {
	Content []Content `json:"content"`
}

// Server is the REST front end.
type Server struct {
	info    Info
	tools   *toolbox.ToolBox
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

// New creates a Server dispatching to tools.
func New(info Info, tools *toolbox.ToolBox, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		info:    info,
		tools:   tools,
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
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /mcp/v1/tools", s.handleListTools)
	mux.HandleFunc("POST /mcp/v1/call_tool", s.handleCallTool)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return httpmw.Chain(mux, httpmw.Standard(s.logger, s.origins)...)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httpmw.WriteJSON(w, http.StatusOK, statusResponse{Info: s.info, Status: "running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpmw.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.Tools()

	resp := toolsResponse{Tools: make([]toolbox.Descriptor, 0, len(tools))}
	for _, t := range tools {
		resp.Tools = append(resp.Tools, t.Descriptor())
	}

	httpmw.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpmw.WriteJSON(w, http.StatusBadRequest, httpmw.ErrorBody{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  "invalid_request",
		})
		return
	}

	if req.Name == "" {
		httpmw.WriteJSON(w, http.StatusBadRequest, httpmw.ErrorBody{Error: "tool name is required", Kind: "invalid_request"})
		return
	}

	text, err := s.tools.Call(r.Context(), req.Name, req.Arguments)
	if errors.Is(err, toolbox.ErrToolNotFound) {
		httpmw.WriteJSON(w, http.StatusBadRequest, httpmw.ErrorBody{Error: err.Error(), Kind: "unknown_tool"})
		return
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("tool", req.Name).
			Str("request_id", httpmw.RequestIDFromContext(r.Context())).
			Msg("tool call failed")
		httpmw.WriteError(w, err)
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, CallResponse{Content: []Content{{Type: "text", Text: text}}})
}
