package tools

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// CalculateMathTool evaluates arithmetic expressions with CEL. The
// environment is sandboxed: no variables, no custom functions beyond
// the math extension.
type CalculateMathTool struct {
	env    *cel.Env
	envErr error
}

func NewCalculateMathTool() *CalculateMathTool {
	env, err := cel.NewEnv(ext.Math())
	return &CalculateMathTool{env: env, envErr: err}
}

func (t *CalculateMathTool) Name() string { return "calculate_math" }

func (t *CalculateMathTool) Description() string {
	return "Calculate mathematical expressions and return the result. Supports arithmetic operators and math helpers (e.g., \"2 + 2\", \"(10 * 5) / 2\", \"math.sqrt(16.0)\")."
}

func (t *CalculateMathTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "Mathematical expression to evaluate (e.g., \"2 + 2\", \"10 * 5\").",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculateMathTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	expression, _ := args["expression"].(string)
	if expression == "" {
		return ErrorResult("expression is required")
	}
	if t.envErr != nil {
		return Errorf("Error calculating '%s': %v", expression, t.envErr)
	}

	ast, issues := t.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return Errorf("Error calculating '%s': %v", expression, issues.Err())
	}

	prg, err := t.env.Program(ast)
	if err != nil {
		return Errorf("Error calculating '%s': %v", expression, err)
	}

	out, _, err := prg.Eval(cel.NoVars())
	if err != nil {
		return Errorf("Error calculating '%s': %v", expression, err)
	}

	return NewResult(fmt.Sprintf("Result: %v", out.Value()))
}
