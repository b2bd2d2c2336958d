// Package engine is the composition root of the proxy. It assembles the
// completion adapter, metrics, the call_claude tool and the MCP server from a
// config.Config, and runs the stdio, REST, completion and SSE front ends on
// top of them. Commands interact with Engine and never wire lower-level
// packages themselves.
package engine
