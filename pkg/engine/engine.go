package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/germanamz/claudeproxy/pkg/completeapi"
	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/config"
	"github.com/germanamz/claudeproxy/pkg/httpmw"
	"github.com/germanamz/claudeproxy/pkg/metrics"
	"github.com/germanamz/claudeproxy/pkg/providers/anthropic"
	"github.com/germanamz/claudeproxy/pkg/restapi"
	"github.com/germanamz/claudeproxy/pkg/sseserver"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/germanamz/claudeproxy/pkg/tools/mcpserver"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// InfoURI is the MCP resource describing the server.
const InfoURI = "claudeproxy://info"

// Info describes the running server.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
}

// Engine holds the assembled proxy components.
type Engine struct {
	cfg       config.Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	adapter   *anthropic.Adapter
	completer completion.Completer
	tools     *toolbox.ToolBox
	mcp       *mcpserver.MCPServer
}

// New validates cfg and assembles an Engine. A nil client selects
// http.DefaultClient for calls to the remote endpoint.
func New(cfg config.Config, logger zerolog.Logger, client *http.Client) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		tools:  toolbox.New(),
	}

	e.adapter = anthropic.New(cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, client)
	e.adapter.SetVersion(cfg.Anthropic.Version)
	e.completer = e.adapter

	if cfg.Metrics.Enabled {
		e.metrics = metrics.New()
		e.completer = e.metrics.Instrument(e.completer)
	}

	e.tools.Register(calltool.Tool(e.completer))

	e.mcp = mcpserver.New(cfg.Server.Name, cfg.Server.Version)
	e.mcp.Register(e.tools.Tools()...)
	e.mcp.RegisterResource(mcpserver.Resource{
		URI:         InfoURI,
		Name:        "info",
		Description: "Server name, version and available tools",
		MIMEType:    "application/json",
		Read: func(context.Context) (string, error) {
			b, err := json.Marshal(e.Info())
			return string(b), err
		},
	})

	if !e.adapter.Configured() {
		logger.Warn().Msg("ANTHROPIC_API_KEY is not set; completions will fail until it is configured")
	}

	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() config.Config { return e.cfg }

// Completer returns the instrumented completion adapter.
func (e *Engine) Completer() completion.Completer { return e.completer }

// Tools returns the registered tools.
func (e *Engine) Tools() *toolbox.ToolBox { return e.tools }

// Configured reports whether an API key is present.
func (e *Engine) Configured() bool { return e.adapter.Configured() }

// Info returns the server description served by the info resource.
func (e *Engine) Info() Info {
	tools := e.tools.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}

	return Info{
		Name:        e.cfg.Server.Name,
		Version:     e.cfg.Server.Version,
		Description: e.cfg.Server.Description,
		Tools:       names,
	}
}

func (e *Engine) metricsHandler() http.Handler {
	if e.metrics == nil {
		return nil
	}

	return e.metrics.Handler()
}

// RESTHandler returns the REST tool envelope handler.
func (e *Engine) RESTHandler() http.Handler {
	opts := []restapi.Option{restapi.WithAllowedOrigins(e.cfg.CORS.AllowedOrigins)}
	if h := e.metricsHandler(); h != nil {
		opts = append(opts, restapi.WithMetrics(h))
	}

	return restapi.New(restapi.Info{
		Name:        e.cfg.Server.Name,
		Version:     e.cfg.Server.Version,
		Description: e.cfg.Server.Description,
	}, e.tools, e.logger.With().Str("component", "rest").Logger(), opts...).Handler()
}

// CompleteApp returns the fiber completion app.
func (e *Engine) CompleteApp() *fiber.App {
	cfg := completeapi.Config{
		Completer:      e.completer,
		Logger:         e.logger.With().Str("component", "complete").Logger(),
		AllowedOrigins: e.cfg.CORS.AllowedOrigins,
	}
	if e.metrics != nil {
		cfg.Metrics = e.metrics.Registry()
	}

	return completeapi.New(cfg)
}

// SSEServer returns the HTTP host for the MCP server.
func (e *Engine) SSEServer() *sseserver.Server {
	opts := []sseserver.Option{sseserver.WithAllowedOrigins(e.cfg.CORS.AllowedOrigins)}
	if h := e.metricsHandler(); h != nil {
		opts = append(opts, sseserver.WithMetrics(h))
	}

	return sseserver.New(e.mcp, e.logger.With().Str("component", "sse").Logger(), opts...)
}

// ServeStdio serves MCP over in and out until ctx is cancelled or in closes.
func (e *Engine) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	e.logger.Info().Str("server", e.cfg.Server.Name).Msg("serving MCP over stdio")

	return e.mcp.Serve(ctx, in, out)
}

// ServeREST serves the REST tool envelope on addr until ctx is cancelled.
func (e *Engine) ServeREST(ctx context.Context, addr string) error {
	e.logger.Info().Str("addr", addr).Msg("rest server listening")

	return httpmw.ListenAndServe(ctx, addr, e.RESTHandler())
}

// ServeSSE serves the MCP HTTP transports on addr until ctx is cancelled.
func (e *Engine) ServeSSE(ctx context.Context, addr string) error {
	return e.SSEServer().ListenAndServe(ctx, addr)
}

// ServeComplete serves the completion API on addr until ctx is cancelled.
func (e *Engine) ServeComplete(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("engine: listen %s: %w", addr, err)
	}

	return e.serveFiber(ctx, e.CompleteApp(), ln)
}

func (e *Engine) serveFiber(ctx context.Context, app *fiber.App, ln net.Listener) error {
	e.logger.Info().Str("addr", ln.Addr().String()).Msg("completion api listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("engine: completion api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	err := app.ShutdownWithTimeout(httpmw.ShutdownTimeout)
	// Shutdown before the app starts serving leaves the listener open.
	_ = ln.Close()
	if err != nil {
		return fmt.Errorf("engine: completion api shutdown: %w", err)
	}

	return nil
}

// ServeAll runs the REST, completion and SSE front ends together on their
// configured addresses. The first failure stops the others.
func (e *Engine) ServeAll(ctx context.Context) error {
	if err := e.cfg.ValidateListeners(config.ListenerREST, config.ListenerComplete, config.ListenerSSE); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.ServeREST(ctx, e.cfg.REST.Addr) })
	g.Go(func() error { return e.ServeComplete(ctx, e.cfg.Complete.Addr) })
	g.Go(func() error { return e.ServeSSE(ctx, e.cfg.SSE.Addr) })

	return g.Wait()
}
