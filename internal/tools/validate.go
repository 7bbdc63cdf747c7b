package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateArgs checks args against a tool's parameter schema before
// execution: required fields, primitive types, and enum membership.
// Returns *InvalidArgumentsError on the first violation.
func ValidateArgs(toolName string, schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	for _, field := range requiredFields(schema) {
		if _, exists := args[field]; !exists {
			return &InvalidArgumentsError{Tool: toolName, Reason: "missing required field: " + field}
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return nil
	}

	for key, value := range args {
		propDef, ok := props[key].(map[string]interface{})
		if !ok {
			continue
		}

		if expected, ok := propDef["type"].(string); ok {
			if err := checkType(value, expected); err != nil {
				return &InvalidArgumentsError{Tool: toolName, Reason: fmt.Sprintf("field %s: %v", key, err)}
			}
		}
		if err := checkEnum(value, propDef["enum"]); err != nil {
			return &InvalidArgumentsError{Tool: toolName, Reason: fmt.Sprintf("field %s: %v", key, err)}
		}
	}
	return nil
}

// requiredFields tolerates both []interface{} (decoded JSON) and
// []string (schemas built in Go).
func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		fields := make([]string, 0, len(required))
		for _, f := range required {
			if name, ok := f.(string); ok {
				fields = append(fields, name)
			}
		}
		return fields
	}
	return nil
}

func checkType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if value == nil {
			break
		}
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]interface{}); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		// Tolerate schema types this validator does not model.
		return nil
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func checkEnum(value, enum interface{}) error {
	var allowed []interface{}
	switch e := enum.(type) {
	case nil:
		return nil
	case []interface{}:
		allowed = e
	case []string:
		allowed = make([]interface{}, len(e))
		for i, s := range e {
			allowed[i] = s
		}
	default:
		return nil
	}

	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("value %v not in %v", value, allowed)
}

func isNumber(value interface{}) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
