// Package calltool defines the call_claude tool: the completion operation
// packaged as a named tool with a JSON Schema, as served by the MCP and REST
// tool front ends.
package calltool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/tools/toolbox"
)

// Name is the tool name clients invoke.
const Name = "call_claude"

// Description is the human readable tool description.
const Description = "Calls Claude with the given model and returns its reply"

// InputSchema is the JSON Schema of the tool arguments.
var InputSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "model": {
      "type": "string",
      "description": "Claude model to use (e.g. claude-3-5-sonnet-20241022)"
    },
    "prompt": {
      "type": "string",
      "description": "Prompt sent to the model as a single user turn"
    },
    "max_tokens": {
      "type": "number",
      "description": "Maximum number of tokens in the reply (optional, default: 1024)",
      "default": 1024
    }
  },
  "required": ["model", "prompt"]
}`)

type arguments struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	MaxTokens *float64 `json:"max_tokens"`
}

// Decode parses tool arguments into a completion request. Model and prompt
// must be present. An omitted max_tokens is left at zero so the adapter
// applies its default; a supplied one must be a positive integer.
func Decode(args json.RawMessage) (completion.Request, error) {
	var a arguments

	dec := json.NewDecoder(bytes.NewReader(args))
	if err := dec.Decode(&a); err != nil {
		return completion.Request{}, &completion.Error{
			Kind:    completion.KindInvalidRequest,
			Message: "arguments must be a JSON object",
			Err:     err,
		}
	}

	req := completion.Request{Model: a.Model, Prompt: a.Prompt}

	if a.MaxTokens != nil {
		n := *a.MaxTokens
		if n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return completion.Request{}, completion.Invalid(fmt.Sprintf("max_tokens must be a positive integer, got %v", n))
		}
		req.MaxTokens = int(n)
	}

	if err := req.Validate(); err != nil {
		return completion.Request{}, err
	}

	return req, nil
}

// Tool returns the call_claude tool backed by c.
func Tool(c completion.Completer) toolbox.Tool {
	return toolbox.Tool{
		Name:        Name,
		Description: Description,
		InputSchema: InputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			req, err := Decode(input)
			if err != nil {
				return "", err
			}

			res, err := c.Complete(ctx, req)
			if err != nil {
				return "", err
			}

			return res.Text, nil
		},
	}
}
