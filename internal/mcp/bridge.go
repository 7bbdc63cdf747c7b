package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/parleylabs/parley/internal/tools"
)

// bridgedTool exposes one remote MCP tool through the tools.Tool
// interface. Calls are forwarded to the owning server.
type bridgedTool struct {
	server      *Server
	remoteName  string
	description string
	schema      map[string]interface{}
}

func newBridgedTool(s *Server, t mcpgo.Tool) *bridgedTool {
	return &bridgedTool{
		server:      s,
		remoteName:  t.Name,
		description: t.Description,
		schema:      schemaAsMap(t.InputSchema),
	}
}

func (b *bridgedTool) Name() string {
	return b.server.name + "__" + b.remoteName
}

func (b *bridgedTool) Description() string { return b.description }

func (b *bridgedTool) Parameters() map[string]interface{} { return b.schema }

func (b *bridgedTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if !b.server.connected.Load() {
		return tools.Errorf("mcp server %s is not connected", b.server.name)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.server.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.remoteName
	req.Params.Arguments = args

	result, err := b.server.client.CallTool(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return tools.Errorf("mcp tool %s timed out after %s", b.Name(), b.server.timeout)
		}
		return tools.Errorf("mcp tool %s failed: %v", b.Name(), err)
	}

	text := resultText(result)
	if result.IsError {
		return tools.ErrorResult(text)
	}
	return tools.NewResult(text)
}

// schemaAsMap converts the wire-format input schema into the JSON
// Schema map the registry validates against.
func schemaAsMap(schema mcpgo.ToolInputSchema) map[string]interface{} {
	m := map[string]interface{}{"type": schema.Type}
	if schema.Type == "" {
		m["type"] = "object"
	}
	if len(schema.Properties) > 0 {
		m["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	return m
}

// resultText joins all text content blocks. Non-text blocks are noted
// by type so the model knows something was returned.
func resultText(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcpgo.TextContent:
			parts = append(parts, v.Text)
		case *mcpgo.TextContent:
			parts = append(parts, v.Text)
		default:
			parts = append(parts, fmt.Sprintf("[non-text content: %T]", c))
		}
	}
	return strings.Join(parts, "\n")
}
