package tools

import (
	"context"

	"github.com/parleylabs/parley/internal/providers"
)

// Tool is the interface all tools must implement. Parameters returns a
// JSON Schema object describing the accepted arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ToProviderDef converts a Tool to a providers.ToolDefinition for the
// chat-completions API.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
