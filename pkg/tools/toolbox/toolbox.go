package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrToolNotFound is returned by Call when no tool has the requested name.
var ErrToolNotFound = errors.New("tool not found")

// ToolBox holds a named set of tools. Front ends use it to list tools and
// dispatch calls by name. It is safe for concurrent use.
type ToolBox struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools to the ToolBox. If a tool with the same name
// already exists, it is replaced.
func (tb *ToolBox) Register(tools ...Tool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, t := range tools {
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	tb.mu.RLock()
	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	tb.mu.RUnlock()

	slices.SortFunc(result, func(a, b Tool) int { return strings.Compare(a.Name, b.Name) })

	return result
}

// Call runs the named tool with the given JSON arguments. Unknown names
// yield an error wrapping ErrToolNotFound; handler errors are returned as is
// so callers can inspect them.
func (tb *ToolBox) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := tb.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	return t.Handler(ctx, args)
}
