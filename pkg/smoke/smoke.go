// Package smoke runs scripted checks against a running proxy front end and
// reports each step as passed or failed.
package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/germanamz/claudeproxy/pkg/engine"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/germanamz/claudeproxy/pkg/tools/mcpclient"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
	"github.com/tidwall/gjson"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "claude-3-5-sonnet-20241022"

// Options controls the completion call the checks make.
type Options struct {
	Model     string
	Prompt    string
	MaxTokens int
	Client    *http.Client
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Prompt == "" {
		o.Prompt = "What is the capital of France? Answer in one short sentence."
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 100
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}

	return o
}

func (o Options) arguments() json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"model":      o.Model,
		"prompt":     o.Prompt,
		"max_tokens": o.MaxTokens,
	})

	return b
}

// Check is the outcome of one step.
type Check struct {
	Name    string
	Detail  string
	Err     error
	Elapsed time.Duration // Wall time of the step's round trip.
}

// Passed reports whether the step succeeded.
func (c Check) Passed() bool { return c.Err == nil }

// Report collects the checks of one run in order.
type Report struct {
	Target string
	Checks []Check
}

// add records a step that began at start.
func (r *Report) add(name string, start time.Time, detail string, err error) {
	r.Checks = append(r.Checks, Check{Name: name, Detail: detail, Err: err, Elapsed: time.Since(start)})
}

// Failed returns the number of failed checks.
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed() {
			n++
		}
	}

	return n
}

// Err summarizes the report as an error, or nil if every check passed.
func (r Report) Err() error {
	if n := r.Failed(); n > 0 {
		return fmt.Errorf("smoke: %d of %d checks failed against %s", n, len(r.Checks), r.Target)
	}

	return nil
}

// WriteTo prints one line per check with its latency, followed by a summary.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "smoke checks against %s\n", r.Target)
	for _, c := range r.Checks {
		status := "PASS"
		detail := c.Detail
		if !c.Passed() {
			status = "FAIL"
			detail = c.Err.Error()
		}
		elapsed := c.Elapsed.Round(time.Millisecond)
		if detail != "" {
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", status, c.Name, elapsed, detail)
		} else {
			fmt.Fprintf(&b, "  [%s] %s (%s)\n", status, c.Name, elapsed)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed\n", len(r.Checks)-r.Failed(), r.Failed())

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// REST runs the checks against the REST tool envelope at baseURL.
func REST(ctx context.Context, baseURL string, opts Options) Report {
	opts = opts.withDefaults()
	baseURL = strings.TrimRight(baseURL, "/")
	r := Report{Target: baseURL}
	c := restClient{base: baseURL, http: opts.Client}

	start := time.Now()
	status, body, err := c.do(ctx, http.MethodGet, "/", nil)
	switch {
	case err != nil:
		r.add("server status", start, "", err)
	case status != http.StatusOK || gjson.GetBytes(body, "status").String() != "running":
		r.add("server status", start, "", fmt.Errorf("got %d %s", status, truncate(body)))
	default:
		r.add("server status", start, gjson.GetBytes(body, "name").String(), nil)
	}

	start = time.Now()
	status, body, err = c.do(ctx, http.MethodGet, "/mcp/v1/tools", nil)
	switch {
	case err != nil:
		r.add("list tools", start, "", err)
	case status != http.StatusOK:
		r.add("list tools", start, "", fmt.Errorf("got %d %s", status, truncate(body)))
	case !gjson.GetBytes(body, `tools.#(name=="`+calltool.Name+`")`).Exists():
		r.add("list tools", start, "", fmt.Errorf("%s not listed", calltool.Name))
	default:
		r.add("list tools", start, fmt.Sprintf("%d tool(s)", gjson.GetBytes(body, "tools.#").Int()), nil)
	}

	start = time.Now()
	status, body, err = c.callTool(ctx, calltool.Name, opts.arguments())
	switch {
	case err != nil:
		r.add("call "+calltool.Name, start, "", err)
	case status != http.StatusOK:
		r.add("call "+calltool.Name, start, "", fmt.Errorf("got %d %s", status, truncate(body)))
	default:
		r.add("call "+calltool.Name, start, gjson.GetBytes(body, "content.0.text").String(), nil)
	}

	start = time.Now()
	status, body, err = c.callTool(ctx, "no_such_tool", json.RawMessage(`{}`))
	r.add("unknown tool rejected", start, "", expectStatus(status, body, err, func(s int) bool { return s == http.StatusBadRequest }))

	start = time.Now()
	status, body, err = c.callTool(ctx, calltool.Name, json.RawMessage(`{"model":"`+opts.Model+`"}`))
	r.add("missing prompt rejected", start, "", expectStatus(status, body, err, func(s int) bool { return s >= 400 && s < 500 }))

	return r
}

// SSE runs the checks against the MCP SSE endpoint at url.
func SSE(ctx context.Context, url string, opts Options) Report {
	opts = opts.withDefaults()
	r := Report{Target: url}

	start := time.Now()
	client, err := mcpclient.NewSSE(ctx, url)
	if err != nil {
		r.add("connect", start, "", err)
		return r
	}
	defer func() { _ = client.Close() }()
	r.add("connect", start, client.ServerName(), nil)

	start = time.Now()
	info, err := client.ReadResource(ctx, engine.InfoURI)
	switch {
	case err != nil:
		r.add("read info", start, "", err)
	case !gjson.Valid(info) || gjson.Get(info, "name").String() == "":
		r.add("read info", start, "", fmt.Errorf("unexpected info %s", truncate([]byte(info))))
	default:
		r.add("read info", start, gjson.Get(info, "name").String()+" "+gjson.Get(info, "version").String(), nil)
	}

	start = time.Now()
	tools, err := client.ListTools(ctx)
	switch {
	case err != nil:
		r.add("list tools", start, "", err)
	case !hasTool(tools, calltool.Name):
		r.add("list tools", start, "", fmt.Errorf("%s not listed", calltool.Name))
	default:
		r.add("list tools", start, fmt.Sprintf("%d tool(s)", len(tools)), nil)
	}

	start = time.Now()
	text, err := client.CallTool(ctx, calltool.Name, opts.arguments())
	r.add("call "+calltool.Name, start, text, err)

	start = time.Now()
	_, err = client.CallTool(ctx, "no_such_tool", json.RawMessage(`{}`))
	r.add("unknown tool rejected", start, "", expectCallError(err))

	start = time.Now()
	_, err = client.CallTool(ctx, calltool.Name, json.RawMessage(`{"model":"`+opts.Model+`"}`))
	r.add("missing prompt rejected", start, "", expectToolError(err))

	return r
}

// expectCallError accepts any failure: servers answer an unknown tool with
// a protocol error.
func expectCallError(err error) error {
	if err == nil {
		return errors.New("call succeeded")
	}

	return nil
}

// expectToolError accepts only a result the server flagged IsError.
func expectToolError(err error) error {
	var toolErr *mcpclient.ToolError
	switch {
	case err == nil:
		return errors.New("call succeeded")
	case !errors.As(err, &toolErr):
		return fmt.Errorf("expected a tool error result, got %w", err)
	}

	return nil
}

type restClient struct {
	base string
	http *http.Client
}

func (c restClient) callTool(ctx context.Context, name string, args json.RawMessage) (int, []byte, error) {
	body, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		return 0, nil, err
	}

	return c.do(ctx, http.MethodPost, "/mcp/v1/call_tool", body)
}

func (c restClient) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}

func expectStatus(status int, body []byte, err error, ok func(int) bool) error {
	if err != nil {
		return err
	}
	if !ok(status) {
		return fmt.Errorf("unexpected status %d %s", status, truncate(body))
	}

	return nil
}

func hasTool(tools []toolbox.Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}

	return false
}

func truncate(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}

	return s
}
