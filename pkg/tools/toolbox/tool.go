package toolbox

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool represents an executable tool with a name, description, JSON Schema, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Descriptor is the wire form of a tool as listed by the REST front end.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Descriptor returns the listing form of t. A nil schema is reported as an
// empty object schema.
func (t Tool) Descriptor() Descriptor {
	schema := t.InputSchema
	if schema == nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	return Descriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}
