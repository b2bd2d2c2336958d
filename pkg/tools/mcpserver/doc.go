// Package mcpserver exposes toolbox tools and read-only resources over the
// Model Context Protocol. It is a thin wrapper around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk) and serves the stdio, SSE and
// streamable HTTP transports from one server value.
package mcpserver
