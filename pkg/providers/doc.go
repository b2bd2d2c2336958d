// Package providers groups the remote completion adapters.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/claudeproxy/pkg/providers/anthropic]: the Anthropic Messages API adapter
//
// Shared HTTP plumbing lives in [github.com/germanamz/claudeproxy/pkg/modeladapter]
// and the request/result/error types in [github.com/germanamz/claudeproxy/pkg/completion].
package providers
