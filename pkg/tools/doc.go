// Package tools provides the tool layer and MCP (Model Context Protocol) integration.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/claudeproxy/pkg/tools/toolbox]: Tool type and ToolBox registry for listing and calling tools by name
//   - [github.com/germanamz/claudeproxy/pkg/tools/calltool]: the call_claude tool, backed by a completion.Completer
//   - [github.com/germanamz/claudeproxy/pkg/tools/mcpserver]: MCP server exposing tools over stdio, SSE and streamable HTTP
//   - [github.com/germanamz/claudeproxy/pkg/tools/mcpclient]: MCP client used to exercise running servers
//
// The toolbox sub-package is the foundation layer. Both mcpclient and mcpserver
// depend on toolbox for the Tool type but are independent of each other.
// The mcpclient and mcpserver packages are thin wrappers around the official
// MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
package tools
