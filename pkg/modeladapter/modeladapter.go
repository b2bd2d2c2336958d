package modeladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/tidwall/gjson"
)

// maxErrorBody caps how much of a failed response body is kept for diagnostics.
const maxErrorBody = 64 << 10

// ParseRetryAfter parses the Retry-After header value as either seconds (integer)
// or an HTTP-date (RFC 7231). Returns zero if unparseable or if the date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
		return 0
	}
	return 0
}

// Auth holds the credential header for a provider API.
type Auth struct {
	Key    string // API key value.
	Header string // Header carrying the key verbatim, e.g. "x-api-key".
}

// Response is a successful (200) HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ModelAdapter holds the shared HTTP plumbing for provider implementations.
// Embed it in concrete provider structs to get auth, custom headers and a
// JSON POST helper that classifies failures. It is read-only after
// construction and safe for concurrent use.
type ModelAdapter struct {
	BaseURL string            // API base URL (no trailing slash).
	Auth    Auth              // Authentication settings.
	Client  *http.Client      // HTTP client; falls back to http.DefaultClient.
	Headers map[string]string // Extra headers applied to every request.
}

// New creates a ModelAdapter with the given settings.
// A nil client falls back to http.DefaultClient at call time.
func New(baseURL string, auth Auth, client *http.Client) ModelAdapter {
	return ModelAdapter{
		Auth:    auth,
		BaseURL: baseURL,
		Client:  client,
	}
}

// httpClient returns the configured client or http.DefaultClient.
func (a *ModelAdapter) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	return http.DefaultClient
}

// NewRequest builds an *http.Request with the base URL, auth, and custom
// headers already applied.
func (a *ModelAdapter) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := a.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if a.Auth.Key != "" && a.Auth.Header != "" {
		req.Header.Set(a.Auth.Header, a.Auth.Key)
	}

	// Apply custom headers.
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request using the configured HTTP client.
func (a *ModelAdapter) Do(req *http.Request) (*http.Response, error) {
	return a.httpClient().Do(req) //nolint:gosec // URL is built from trusted BaseURL config, not user input.
}

// PostJSON marshals payload as JSON, sends a POST to the given path and
// returns the 200 response with its body read. Every failure is a
// *completion.Error: KindInvalidRequest when payload cannot be encoded,
// KindConfiguration when the base URL does not yield a valid request,
// KindTransport when the call could not complete and KindRemote for any
// status other than 200.
func (a *ModelAdapter) PostJSON(ctx context.Context, path string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, &completion.Error{Kind: completion.KindInvalidRequest, Message: "marshal payload", Err: err}
	}

	req, err := a.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return Response{}, completion.Misconfigured("build request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Do(req)
	if err != nil {
		return Response{}, completion.Transport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		remote := completion.Remote(resp.StatusCode, string(respBody), RemoteErrorMessage(respBody))
		remote.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))

		return Response{}, remote
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, completion.Transport(fmt.Errorf("read response: %w", err))
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// RemoteErrorMessage extracts a human readable message from a provider error
// body. Both {"error":{"message":...}} and {"error":"..."} shapes are
// recognized; anything else yields "".
func RemoteErrorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String {
		return msg.String()
	}

	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String {
		return msg.String()
	}

	return ""
}
