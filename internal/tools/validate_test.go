package tools

import (
	"errors"
	"testing"
)

func TestValidateArgsRequired(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
		"required": []string{"query"},
	}

	err := ValidateArgs("search_web", schema, map[string]interface{}{})
	var invalid *InvalidArgumentsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
	if invalid.Tool != "search_web" {
		t.Errorf("tool: got %s", invalid.Tool)
	}

	if err := ValidateArgs("search_web", schema, map[string]interface{}{"query": "ok"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
}

func TestValidateArgsRequiredFromJSON(t *testing.T) {
	// Schemas decoded from JSON carry []interface{} for required.
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
		"required":   []interface{}{"a"},
	}
	if err := ValidateArgs("t", schema, map[string]interface{}{}); err == nil {
		t.Error("expected missing-field error")
	}
}

func TestValidateArgsTypes(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":    map[string]interface{}{"type": "string"},
			"count":   map[string]interface{}{"type": "integer"},
			"ratio":   map[string]interface{}{"type": "number"},
			"enabled": map[string]interface{}{"type": "boolean"},
			"items":   map[string]interface{}{"type": "array"},
		},
	}

	good := map[string]interface{}{
		"name":    "x",
		"count":   float64(3), // JSON numbers decode as float64
		"ratio":   2.5,
		"enabled": true,
		"items":   []interface{}{"a"},
	}
	if err := ValidateArgs("t", schema, good); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}

	bad := []map[string]interface{}{
		{"name": 42},
		{"count": 2.5},
		{"ratio": "two"},
		{"enabled": "yes"},
		{"items": "not-a-list"},
	}
	for _, args := range bad {
		if err := ValidateArgs("t", schema, args); err == nil {
			t.Errorf("expected type error for %v", args)
		}
	}
}

func TestValidateArgsEnum(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"units": map[string]interface{}{
				"type": "string",
				"enum": []string{"celsius", "fahrenheit"},
			},
		},
	}

	if err := ValidateArgs("fetch_weather", schema, map[string]interface{}{"units": "celsius"}); err != nil {
		t.Errorf("enum member rejected: %v", err)
	}
	if err := ValidateArgs("fetch_weather", schema, map[string]interface{}{"units": "kelvin"}); err == nil {
		t.Error("expected enum violation")
	}
}

func TestValidateArgsUnknownFieldsTolerated(t *testing.T) {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
	}
	args := map[string]interface{}{"a": "x", "extra": 99}
	if err := ValidateArgs("t", schema, args); err != nil {
		t.Errorf("unknown fields should be tolerated: %v", err)
	}
}

func TestValidateArgsNilSchema(t *testing.T) {
	if err := ValidateArgs("t", nil, map[string]interface{}{"anything": 1}); err != nil {
		t.Errorf("nil schema should accept all args: %v", err)
	}
}
