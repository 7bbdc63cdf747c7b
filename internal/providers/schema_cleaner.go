package providers

// Keys stripped from tool parameter schemas before sending. MCP servers
// emit draft-07 metadata and $ref indirection that chat-completions
// backends reject.
var unsupportedSchemaKeys = map[string]bool{
	"$schema":     true,
	"$ref":        true,
	"$defs":       true,
	"definitions": true,
	"$id":         true,
}

// CleanToolSchemas returns a copy of tools with incompatible JSON
// Schema fields removed from each tool's parameters. Tools whose
// schemas are already clean are passed through unchanged.
func CleanToolSchemas(tools []ToolDefinition) []ToolDefinition {
	if len(tools) == 0 {
		return tools
	}

	cleaned := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		cleaned[i] = ToolDefinition{
			Type: t.Type,
			Function: ToolFunctionSchema{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  cleanSchema(t.Function.Parameters),
			},
		}
	}
	return cleaned
}

// cleanSchema recursively removes unsupported keys from a JSON Schema map.
func cleanSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}

	result := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if unsupportedSchemaKeys[k] {
			continue
		}

		switch val := v.(type) {
		case map[string]interface{}:
			result[k] = cleanSchema(val)
		case []interface{}:
			result[k] = cleanSchemaSlice(val)
		default:
			result[k] = v
		}
	}
	return result
}

// cleanSchemaSlice recurses into arrays (e.g. "anyOf", "oneOf", "allOf").
func cleanSchemaSlice(items []interface{}) []interface{} {
	result := make([]interface{}, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			result[i] = cleanSchema(m)
		} else {
			result[i] = item
		}
	}
	return result
}
