package agent

import (
	"context"
	"encoding/json"
)

// Tool is one callable capability exposed to the model. Implementations
// come from whatever the graph wires into the agent's tools socket:
// toolset nodes, MCP servers, or sub-agents.
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the JSON Schema for the tool's input object.
	InputSchema() []byte
	// Execute runs the tool and returns its textual result.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          []byte
	Fn              func(ctx context.Context, input json.RawMessage) (string, error)
}

func (t *FuncTool) Name() string        { return t.ToolName }
func (t *FuncTool) Description() string { return t.ToolDescription }
func (t *FuncTool) InputSchema() []byte {
	if len(t.Schema) == 0 {
		return []byte(`{"type":"object"}`)
	}
	return t.Schema
}

func (t *FuncTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.Fn(ctx, input)
}
