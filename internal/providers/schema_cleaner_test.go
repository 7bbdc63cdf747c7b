package providers

import (
	"testing"
)

func TestCleanToolSchemas(t *testing.T) {
	tools := []ToolDefinition{{
		Type: "function",
		Function: ToolFunctionSchema{
			Name:        "test",
			Description: "desc",
			Parameters: map[string]interface{}{
				"$schema": "http://json-schema.org/draft-07/schema#",
				"type":    "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{
						"type": "string",
						"$ref": "#/$defs/URL",
					},
				},
				"$defs":                map[string]interface{}{"URL": "..."},
				"additionalProperties": false,
			},
		},
	}}

	cleaned := CleanToolSchemas(tools)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(cleaned))
	}

	params := cleaned[0].Function.Parameters
	for _, key := range []string{"$schema", "$defs"} {
		if _, ok := params[key]; ok {
			t.Errorf("expected key %q to be removed", key)
		}
	}

	// Supported schema keywords stay.
	if _, ok := params["type"]; !ok {
		t.Error("expected 'type' to remain")
	}
	if _, ok := params["additionalProperties"]; !ok {
		t.Error("expected 'additionalProperties' to remain")
	}

	// Nested $ref is removed.
	props := params["properties"].(map[string]interface{})
	urlSchema := props["url"].(map[string]interface{})
	if _, ok := urlSchema["$ref"]; ok {
		t.Error("expected nested '$ref' to be removed")
	}
	if _, ok := urlSchema["type"]; !ok {
		t.Error("expected nested 'type' to remain")
	}

	// Original input untouched.
	if _, ok := tools[0].Function.Parameters["$schema"]; !ok {
		t.Error("input schema mutated")
	}
}

func TestCleanToolSchemas_Empty(t *testing.T) {
	if cleaned := CleanToolSchemas(nil); cleaned != nil {
		t.Error("expected nil for nil tools")
	}
}

func TestCleanSchema_NilParams(t *testing.T) {
	tools := []ToolDefinition{{
		Type:     "function",
		Function: ToolFunctionSchema{Name: "bare"},
	}}
	cleaned := CleanToolSchemas(tools)
	if cleaned[0].Function.Parameters != nil {
		t.Error("expected nil parameters to stay nil")
	}
}

func TestCleanSchema_NestedArray(t *testing.T) {
	tools := []ToolDefinition{{
		Type: "function",
		Function: ToolFunctionSchema{
			Name: "test",
			Parameters: map[string]interface{}{
				"anyOf": []interface{}{
					map[string]interface{}{
						"type": "string",
					},
					map[string]interface{}{
						"type": "number",
						"$ref": "#/defs/Num",
					},
					"passthrough",
				},
			},
		},
	}}

	cleaned := CleanToolSchemas(tools)
	anyOf := cleaned[0].Function.Parameters["anyOf"].([]interface{})
	if len(anyOf) != 3 {
		t.Fatalf("expected 3 items, got %d", len(anyOf))
	}

	second := anyOf[1].(map[string]interface{})
	if _, ok := second["$ref"]; ok {
		t.Error("expected '$ref' removed in array item")
	}
	if _, ok := second["type"]; !ok {
		t.Error("expected 'type' to remain in array item")
	}
	if anyOf[2] != "passthrough" {
		t.Error("non-map array item altered")
	}
}

func TestCleanSchema_DeepNesting(t *testing.T) {
	tools := []ToolDefinition{{
		Type: "function",
		Function: ToolFunctionSchema{
			Name: "test",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"config": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"nested": map[string]interface{}{
								"type": "string",
								"$ref": "#/deep",
							},
						},
					},
				},
			},
		},
	}}

	cleaned := CleanToolSchemas(tools)
	props := cleaned[0].Function.Parameters["properties"].(map[string]interface{})
	config := props["config"].(map[string]interface{})
	innerProps := config["properties"].(map[string]interface{})
	nested := innerProps["nested"].(map[string]interface{})

	if _, ok := nested["$ref"]; ok {
		t.Error("expected deeply nested '$ref' removed")
	}
	if _, ok := nested["type"]; !ok {
		t.Error("expected 'type' to remain at deep level")
	}
}
