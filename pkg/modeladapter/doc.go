// Package modeladapter provides the HTTP plumbing shared by provider adapters.
//
// It contains:
//   - [ModelAdapter], an embeddable base struct with auth, custom headers and a
//     JSON POST helper that turns failures into [completion.Error] values
//   - [ParseAnthropicRateLimitHeaders] for reading rate limit state off responses
//
// This package contains no provider-specific request or response shapes;
// concrete adapters live in separate packages that import modeladapter.
package modeladapter
