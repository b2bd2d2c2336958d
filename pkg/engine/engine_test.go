package engine

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/claudeproxy/pkg/config"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUpstream starts a fake Messages endpoint that echoes the prompt.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "echo: " + req.Messages[0].Content}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newEngine(t *testing.T, apiKey string) *Engine {
	t.Helper()

	upstream := newUpstream(t)

	cfg := config.Default()
	cfg.Anthropic.APIKey = apiKey
	cfg.Anthropic.BaseURL = upstream.URL

	e, err := New(cfg, zerolog.Nop(), upstream.Client())
	require.NoError(t, err)

	return e
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Name = ""

	_, err := New(cfg, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "server.name")
}

func TestNew_MissingKeyIsNotAnError(t *testing.T) {
	e := newEngine(t, "")
	assert.False(t, e.Configured())
}

func TestInfo(t *testing.T) {
	e := newEngine(t, "k")

	info := e.Info()
	assert.Equal(t, "claude-mcp-server", info.Name)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, []string{calltool.Name}, info.Tools)
}

func TestRESTHandler_CallTool(t *testing.T) {
	e := newEngine(t, "k")

	srv := httptest.NewServer(e.RESTHandler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/mcp/v1/call_tool", "application/json",
		strings.NewReader(`{"name":"call_claude","arguments":{"model":"m","prompt":"ping"}}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Content, 1)
	assert.Equal(t, "echo: ping", body.Content[0].Text)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(metricsResp.Body)
	_ = metricsResp.Body.Close()
	assert.Contains(t, string(raw), `claudeproxy_completions_total{model="m",outcome="success"} 1`)
	assert.Contains(t, string(raw), `claudeproxy_completion_tokens_total{direction="input"} 3`)
}

func TestRESTHandler_NotConfigured(t *testing.T) {
	e := newEngine(t, "")

	srv := httptest.NewServer(e.RESTHandler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/mcp/v1/call_tool", "application/json",
		strings.NewReader(`{"name":"call_claude","arguments":{"model":"m","prompt":"ping"}}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "configuration_error", body["kind"])
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	e, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(e.RESTHandler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteApp(t *testing.T) {
	e := newEngine(t, "k")

	req := httptest.NewRequest(http.MethodPost, "/v1/complete", strings.NewReader(`{"model":"m","prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.CompleteApp().Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "echo: hello", body["text"])
	assert.Equal(t, "end_turn", body["stop_reason"])
}

func TestServeStdio(t *testing.T) {
	e := newEngine(t, "k")

	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.ServeStdio(ctx, clientToServerR, serverToClientW)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.IOTransport{Reader: serverToClientR, Writer: clientToServerW}, nil)
	require.NoError(t, err)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      calltool.Name,
		Arguments: map[string]any{"model": "m", "prompt": "over stdio"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "echo: over stdio", tc.Text)

	rr, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: InfoURI})
	require.NoError(t, err)
	require.Len(t, rr.Contents, 1)

	var info Info
	require.NoError(t, json.Unmarshal([]byte(rr.Contents[0].Text), &info))
	assert.Equal(t, []string{calltool.Name}, info.Tools)

	_ = session.Close()
	cancel()
	<-done
}

func TestServeFiber_Shutdown(t *testing.T) {
	e := newEngine(t, "k")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.serveFiber(ctx, e.CompleteApp(), ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveFiber did not return after cancel")
	}
}

func TestServeAll_DuplicateAddr(t *testing.T) {
	cfg := config.Default()
	cfg.REST.Addr = "127.0.0.1:18081"
	cfg.Complete.Addr = "127.0.0.1:18081"

	e, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	err = e.ServeAll(context.Background())
	assert.ErrorContains(t, err, "already used by rest")
}

func TestServeAll_ListenFailureStopsOthers(t *testing.T) {
	cfg := config.Default()
	cfg.REST.Addr = "not-an-addr"
	cfg.Complete.Addr = "127.0.0.1:0"
	cfg.SSE.Addr = "localhost:0"

	e, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.ServeAll(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "listen not-an-addr")
	case <-time.After(10 * time.Second):
		t.Fatal("ServeAll did not return")
	}
}
