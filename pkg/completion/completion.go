// Package completion defines the single operation every front end of the
// proxy performs: turn a (model, prompt, max tokens) request into generated
// text or a typed failure.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultMaxTokens is the token budget used when a request does not set one.
const DefaultMaxTokens = 1024

// Completer performs one completion call.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (Result, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Request is a single completion request.
type Request struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"` // Zero means DefaultMaxTokens.
}

// WithDefaults returns a copy of r with unset fields filled in.
func (r Request) WithDefaults() Request {
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}

	return r
}

// Validate reports whether r can be sent. It returns an *Error of kind
// KindInvalidRequest describing the first problem found.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Model) == "":
		return Invalid("model is required")
	case r.Prompt == "":
		return Invalid("prompt is required")
	case r.MaxTokens < 0:
		return Invalid(fmt.Sprintf("max_tokens must be a positive integer, got %d", r.MaxTokens))
	}

	return nil
}

// TokenCount holds input and output token counts for a single call.
type TokenCount struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// RateLimitInfo holds rate limit state reported by the remote endpoint
// alongside a response.
type RateLimitInfo struct {
	RemainingRequests int
	RemainingTokens   int
	RequestsReset     time.Time
	TokensReset       time.Time
}

// Result is the outcome of a successful completion.
type Result struct {
	Text       string         // Text of the first content block, unmodified.
	Usage      TokenCount     // Token usage reported by the remote endpoint.
	StopReason string         // Why generation stopped, as reported remotely.
	RateLimit  *RateLimitInfo // Nil when the response carried no rate limit headers.
}
