package agent

import (
	"context"
	"encoding/json"

	"mediaqa/internal/core"
)

// Tool is a function the model may call during a run.
type Tool interface {
	Definition() core.ToolDefinition
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// FunctionTool adapts a plain function to the Tool interface.
type FunctionTool struct {
	def core.ToolDefinition
	fn  func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewFunctionTool creates a tool from a name, description, JSON-schema parameters and handler.
func NewFunctionTool(name, description string, parameters map[string]any, fn func(ctx context.Context, args json.RawMessage) (string, error)) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		def: core.ToolDefinition{
			Type: "function",
			Function: core.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		},
		fn: fn,
	}
}

func (t *FunctionTool) Definition() core.ToolDefinition {
	return t.def
}

func (t *FunctionTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return t.fn(ctx, args)
}
