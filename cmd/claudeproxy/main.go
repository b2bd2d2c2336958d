// Claudeproxy exposes the Anthropic Messages API as a single call_claude tool
// over several front ends.
//
// Usage:
//
//	# MCP over stdio, for desktop clients that spawn the server
//	claudeproxy stdio
//
//	# REST tool envelope on :8080
//	claudeproxy rest
//
//	# REST, completion API and MCP SSE together
//	claudeproxy serve --config claudeproxy.yaml
//
//	# One completion from the command line
//	claudeproxy ask --model claude-3-5-sonnet-20241022 "Hello"
//
//	# Check a running REST front end
//	claudeproxy smoke --url http://localhost:8080
package main

func main() {
	Execute()
}
