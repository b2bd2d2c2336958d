package modeladapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
)

// RateLimitHeaderParser extracts rate limit info from HTTP response headers.
// It receives the current time so callers can control the clock in tests.
type RateLimitHeaderParser func(h http.Header, now time.Time) *completion.RateLimitInfo

// ParseAnthropicRateLimitHeaders parses Anthropic-specific rate limit headers.
// Headers: anthropic-ratelimit-{requests,tokens}-{remaining,reset}.
func ParseAnthropicRateLimitHeaders(h http.Header, now time.Time) *completion.RateLimitInfo {
	reqRemaining := h.Get("anthropic-ratelimit-requests-remaining")
	tokRemaining := h.Get("anthropic-ratelimit-tokens-remaining")

	if reqRemaining == "" && tokRemaining == "" {
		return nil
	}

	info := &completion.RateLimitInfo{}
	if v, err := strconv.Atoi(reqRemaining); err == nil {
		info.RemainingRequests = v
	}
	if v, err := strconv.Atoi(tokRemaining); err == nil {
		info.RemainingTokens = v
	}
	info.RequestsReset = parseResetTime(h.Get("anthropic-ratelimit-requests-reset"), now)
	info.TokensReset = parseResetTime(h.Get("anthropic-ratelimit-tokens-reset"), now)

	return info
}

// parseResetTime tries RFC3339 first, then a Go duration string (e.g. "6s", "1m30s")
// relative to now.
func parseResetTime(val string, now time.Time) time.Time {
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}
	if d, err := time.ParseDuration(val); err == nil {
		return now.Add(d)
	}
	return time.Time{}
}
