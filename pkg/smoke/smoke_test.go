package smoke

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/engine"
	"github.com/germanamz/claudeproxy/pkg/restapi"
	"github.com/germanamz/claudeproxy/pkg/sseserver"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/germanamz/claudeproxy/pkg/tools/mcpclient"
	"github.com/germanamz/claudeproxy/pkg/tools/mcpserver"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatingCompleter() completion.Completer {
	return completion.CompleterFunc(func(_ context.Context, req completion.Request) (completion.Result, error) {
		req = req.WithDefaults()
		if err := req.Validate(); err != nil {
			return completion.Result{}, err
		}
		return completion.Result{Text: "Paris is the capital of France."}, nil
	})
}

func newREST(t *testing.T, c completion.Completer) string {
	t.Helper()

	tb := toolbox.New()
	tb.Register(calltool.Tool(c))

	srv := httptest.NewServer(restapi.New(restapi.Info{Name: "claude-mcp-server"}, tb, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestREST_AllPass(t *testing.T) {
	url := newREST(t, validatingCompleter())

	r := REST(context.Background(), url+"/", Options{})

	require.Len(t, r.Checks, 5)
	for _, c := range r.Checks {
		assert.True(t, c.Passed(), "%s: %v", c.Name, c.Err)
	}
	assert.Zero(t, r.Failed())
	assert.NoError(t, r.Err())
	assert.Equal(t, "claude-mcp-server", r.Checks[0].Detail)
	assert.Equal(t, "Paris is the capital of France.", r.Checks[2].Detail)
}

func TestREST_RecordsLatency(t *testing.T) {
	const delay = 20 * time.Millisecond
	url := newREST(t, completion.CompleterFunc(func(context.Context, completion.Request) (completion.Result, error) {
		time.Sleep(delay)
		return completion.Result{Text: "slow"}, nil
	}))

	r := REST(context.Background(), url, Options{})

	require.Len(t, r.Checks, 5)
	assert.GreaterOrEqual(t, r.Checks[2].Elapsed, delay)
	for _, c := range r.Checks {
		assert.Positive(t, c.Elapsed, c.Name)
	}
}

func TestREST_CompletionFailure(t *testing.T) {
	url := newREST(t, completion.CompleterFunc(func(context.Context, completion.Request) (completion.Result, error) {
		return completion.Result{}, completion.NotConfigured()
	}))

	r := REST(context.Background(), url, Options{})

	assert.Equal(t, 1, r.Failed())
	assert.False(t, r.Checks[2].Passed())
	assert.ErrorContains(t, r.Err(), "1 of 5 checks failed")
}

func TestREST_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := REST(context.Background(), url, Options{})
	assert.Equal(t, len(r.Checks), r.Failed())
}

func newSSE(t *testing.T, c completion.Completer) string {
	t.Helper()

	s := mcpserver.New("claude-mcp-server", "1.0.0")
	s.Register(calltool.Tool(c))
	s.RegisterResource(mcpserver.Resource{
		URI:      engine.InfoURI,
		Name:     "info",
		MIMEType: "application/json",
		Read: func(context.Context) (string, error) {
			return `{"name":"claude-mcp-server","version":"1.0.0","tools":["call_claude"]}`, nil
		},
	})

	srv := httptest.NewServer(sseserver.New(s, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	return srv.URL + sseserver.SSEPath
}

func TestSSE_AllPass(t *testing.T) {
	url := newSSE(t, validatingCompleter())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := SSE(ctx, url, Options{})

	require.Len(t, r.Checks, 6)
	for _, c := range r.Checks {
		assert.True(t, c.Passed(), "%s: %v", c.Name, c.Err)
	}
	assert.NoError(t, r.Err())
	assert.Equal(t, "claude-mcp-server", r.Checks[0].Detail)
	assert.Equal(t, "claude-mcp-server 1.0.0", r.Checks[1].Detail)
	assert.Equal(t, "Paris is the capital of France.", r.Checks[3].Detail)
	assert.Equal(t, "unknown tool rejected", r.Checks[4].Name)
	assert.Equal(t, "missing prompt rejected", r.Checks[5].Name)
}

func TestSSE_CompletionFailure(t *testing.T) {
	url := newSSE(t, completion.CompleterFunc(func(context.Context, completion.Request) (completion.Result, error) {
		return completion.Result{}, completion.NotConfigured()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := SSE(ctx, url, Options{})

	require.Len(t, r.Checks, 6)
	assert.Equal(t, 1, r.Failed())
	assert.False(t, r.Checks[3].Passed())
	assert.ErrorContains(t, r.Checks[3].Err, "ANTHROPIC_API_KEY")
}

func TestExpectToolError(t *testing.T) {
	assert.NoError(t, expectToolError(&mcpclient.ToolError{Tool: "call_claude", Text: "prompt is required"}))
	assert.ErrorContains(t, expectToolError(nil), "call succeeded")
	assert.ErrorContains(t, expectToolError(errors.New("mcpclient: call tool: boom")), "expected a tool error")
}

func TestSSE_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := SSE(ctx, srv.URL+"/sse", Options{})
	require.Len(t, r.Checks, 1)
	assert.Equal(t, 1, r.Failed())
}

func TestReport_WriteTo(t *testing.T) {
	r := Report{Target: "http://localhost:8080", Checks: []Check{
		{Name: "server status", Detail: "claude-mcp-server", Elapsed: 3 * time.Millisecond},
		{Name: "call call_claude", Err: errors.New("got 502"), Elapsed: 1250 * time.Millisecond},
	}}

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)

	assert.Equal(t, "smoke checks against http://localhost:8080\n"+
		"  [PASS] server status (3ms): claude-mcp-server\n"+
		"  [FAIL] call call_claude (1.25s): got 502\n"+
		"1 passed, 1 failed\n", buf.String())
}
