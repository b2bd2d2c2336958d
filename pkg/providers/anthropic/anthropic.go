// Package anthropic provides a Completer implementation for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/modeladapter"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the public Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultVersion is the anthropic-version header sent with every request.
	DefaultVersion = "2023-06-01"

	messagesPath = "/v1/messages"
)

var _ completion.Completer = (*Adapter)(nil)

// Adapter implements completion.Completer for the Anthropic Messages API.
// The API key is fixed at construction; an Adapter never consults the
// process environment and holds no mutable state, so one value can serve
// any number of concurrent callers.
type Adapter struct {
	modeladapter.ModelAdapter
	RateLimitParser modeladapter.RateLimitHeaderParser
}

// New creates an Adapter configured for the Anthropic API. An empty baseURL
// selects DefaultBaseURL and a nil client falls back to http.DefaultClient.
// An empty apiKey is accepted: every Complete call then fails with a
// configuration error instead of reaching the network.
func New(baseURL, apiKey string, client *http.Client) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{
		ModelAdapter: modeladapter.New(baseURL, modeladapter.Auth{
			Key:    apiKey,
			Header: "x-api-key",
		}, client),
		RateLimitParser: modeladapter.ParseAnthropicRateLimitHeaders,
	}
	a.Headers = map[string]string{
		"anthropic-version": DefaultVersion,
	}

	return a
}

// SetVersion overrides the anthropic-version header.
func (a *Adapter) SetVersion(version string) {
	if version == "" {
		return
	}

	a.Headers["anthropic-version"] = version
}

// Configured reports whether the adapter holds an API key.
func (a *Adapter) Configured() bool {
	return a.Auth.Key != ""
}

// Complete sends req as a single user turn to the Messages API and returns
// the text of the first content block. Every call issues its own request.
func (a *Adapter) Complete(ctx context.Context, req completion.Request) (completion.Result, error) {
	if !a.Configured() {
		return completion.Result{}, completion.NotConfigured()
	}

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return completion.Result{}, err
	}

	resp, err := a.PostJSON(ctx, messagesPath, buildRequest(req))
	if err != nil {
		return completion.Result{}, fmt.Errorf("anthropic: %w", err)
	}

	res, err := parseResponse(resp.Body)
	if err != nil {
		return completion.Result{}, fmt.Errorf("anthropic: %w", err)
	}

	if a.RateLimitParser != nil {
		res.RateLimit = a.RateLimitParser(resp.Header, time.Now())
	}

	return res, nil
}

// --- request types ---

type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildRequest(req completion.Request) apiRequest {
	return apiRequest{
		Model:     req.Model,
		Messages:  []apiMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	}
}

// parseResponse extracts the first content block's text. Only the fields it
// needs are checked, so unknown fields and extra blocks are tolerated.
func parseResponse(body []byte) (completion.Result, error) {
	if !gjson.ValidBytes(body) {
		return completion.Result{}, completion.Malformed("response body is not valid JSON", nil)
	}

	content := gjson.GetBytes(body, "content")
	if !content.IsArray() {
		return completion.Result{}, completion.Malformed("response has no content array", nil)
	}

	blocks := content.Array()
	if len(blocks) == 0 {
		return completion.Result{}, completion.Malformed("response content is empty", nil)
	}

	text := blocks[0].Get("text")
	if text.Type != gjson.String {
		return completion.Result{}, completion.Malformed(
			fmt.Sprintf("first content block (type %q) has no text", blocks[0].Get("type").String()), nil)
	}

	usage := gjson.GetBytes(body, "usage")

	return completion.Result{
		Text:       text.String(),
		StopReason: gjson.GetBytes(body, "stop_reason").String(),
		Usage: completion.TokenCount{
			InputTokens:  int(usage.Get("input_tokens").Int()),
			OutputTokens: int(usage.Get("output_tokens").Int()),
		},
	}, nil
}
