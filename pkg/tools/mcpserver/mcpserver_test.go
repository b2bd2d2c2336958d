package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func errorHandler(_ context.Context, _ json.RawMessage) (string, error) {
	return "", errors.New("tool failed")
}

func newTestTool(name string) toolbox.Tool {
	return toolbox.Tool{
		Name:        name,
		Description: "Test tool: " + name,
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func fixedCompleter(text string, err error) completion.Completer {
	return completion.CompleterFunc(func(context.Context, completion.Request) (completion.Result, error) {
		if err != nil {
			return completion.Result{}, err
		}
		return completion.Result{Text: text}, nil
	})
}

// connect attaches an SDK client to s via in-memory transports and returns
// the client session. The server runs in a background goroutine tied to
// t.Cleanup.
func connect(t *testing.T, s *MCPServer) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func setupTestClient(t *testing.T, tools ...toolbox.Tool) *mcp.ClientSession {
	t.Helper()

	s := New("test-server", "1.0.0")
	s.Register(tools...)

	return connect(t, s)
}

func TestNew(t *testing.T) {
	s := New("srv", "1.0.0")
	assert.NotNil(t, s.server)
}

func TestListTools(t *testing.T) {
	session := setupTestClient(t,
		newTestTool("echo"),
		calltool.Tool(fixedCompleter("unused", nil)),
	)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tools, 2)

	toolsByName := make(map[string]*mcp.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		toolsByName[tool.Name] = tool
	}

	echo, ok := toolsByName["echo"]
	require.True(t, ok)
	assert.Equal(t, "Test tool: echo", echo.Description)

	call, ok := toolsByName[calltool.Name]
	require.True(t, ok)
	assert.Equal(t, calltool.Description, call.Description)
}

func TestCallClaudeSuccess(t *testing.T) {
	session := setupTestClient(t, calltool.Tool(fixedCompleter("4", nil)))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      calltool.Name,
		Arguments: map[string]any{"model": "model-x", "prompt": "2+2?", "max_tokens": 10},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "4", tc.Text)
}

func TestCallClaudeNotConfigured(t *testing.T) {
	session := setupTestClient(t, calltool.Tool(fixedCompleter("", completion.NotConfigured())))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      calltool.Name,
		Arguments: map[string]any{"model": "m", "prompt": "p"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "configuration_error")
}

func TestToolCallSuccess(t *testing.T) {
	session := setupTestClient(t, newTestTool("echo"))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "hello"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"msg":"hello"}`, tc.Text)
}

func TestToolCallHandlerError(t *testing.T) {
	session := setupTestClient(t, toolbox.Tool{
		Name:        "fail",
		Description: "Always fails",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     errorHandler,
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fail",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "tool failed", tc.Text)
}

func TestToolCallNotFound(t *testing.T) {
	session := setupTestClient(t)

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "missing",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestReadResource(t *testing.T) {
	s := New("srv", "1.0.0")
	s.RegisterResource(Resource{
		URI:      "claudeproxy://info",
		Name:     "info",
		MIMEType: "application/json",
		Read: func(context.Context) (string, error) {
			return `{"name":"srv"}`, nil
		},
	})
	session := connect(t, s)

	listed, err := session.ListResources(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, listed.Resources, 1)
	assert.Equal(t, "claudeproxy://info", listed.Resources[0].URI)

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "claudeproxy://info"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.JSONEq(t, `{"name":"srv"}`, res.Contents[0].Text)
}

func TestSSEHandler(t *testing.T) {
	s := New("srv", "1.0.0")
	s.Register(calltool.Tool(fixedCompleter("over sse", nil)))

	srv := httptest.NewServer(s.SSEHandler())
	t.Cleanup(srv.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.SSEClientTransport{Endpoint: srv.URL}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      calltool.Name,
		Arguments: map[string]any{"model": "m", "prompt": "p"},
	})
	require.NoError(t, err)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "over sse", tc.Text)
}

func TestContextCancellation(t *testing.T) {
	s := New("srv", "1.0.0")
	serverTransport, _ := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.run(ctx, serverTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
