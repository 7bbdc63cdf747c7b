package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleylabs/parley/internal/providers"
)

// Registry manages tool registration and execution. Registration order
// is preserved: List and ProviderDefs return tools in the order they
// were registered, so the model sees a stable tool list.
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]Tool
	order          []string
	rateLimiter    *ToolRateLimiter // nil = no rate limiting
	scrubbing      bool             // scrub credentials from output (default true)
	maxResultChars int              // 0 = DefaultMaxResultChars
}

func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		scrubbing: true,
	}
}

// SetRateLimiter enables per-session tool rate limiting.
func (r *Registry) SetRateLimiter(rl *ToolRateLimiter) {
	r.rateLimiter = rl
}

// SetScrubbing enables or disables credential scrubbing on tool output.
func (r *Registry) SetScrubbing(enabled bool) {
	r.scrubbing = enabled
}

// SetMaxResultChars overrides the tool output cap. 0 keeps the default.
func (r *Registry) SetMaxResultChars(n int) {
	r.maxResultChars = n
}

// Register adds a tool. Registering a name twice returns
// *DuplicateNameError; the original registration is kept.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name, or *UnknownToolError.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Unregister removes a tool from the registry by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Execute runs a tool by name. Unknown names return *UnknownToolError.
// Argument and execution failures come back as an error Result so
// callers can feed the message to the model as an observation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	if sessionKey := SessionKeyFromCtx(ctx); sessionKey != "" && r.rateLimiter != nil {
		if err := r.rateLimiter.Allow(sessionKey); err != nil {
			return ErrorResult(err.Error()).WithError(err), nil
		}
	}

	if err := ValidateArgs(name, tool.Parameters(), args); err != nil {
		return ErrorResult(err.Error()).WithError(err), nil
	}

	start := time.Now()
	result := safeExecute(ctx, tool, args)
	duration := time.Since(start)

	// Scrub credentials from tool output before it reaches the LLM.
	if r.scrubbing {
		if result.ForLLM != "" {
			result.ForLLM = ScrubCredentials(result.ForLLM)
		}
		if result.ForUser != "" {
			result.ForUser = ScrubCredentials(result.ForUser)
		}
	}

	result.ForLLM = TruncateOutput(result.ForLLM, r.maxResultChars)

	slog.Debug("tool executed",
		"tool", name,
		"duration_ms", duration.Milliseconds(),
		"is_error", result.IsError,
	)

	return result, nil
}

// safeExecute converts a tool panic into an error Result.
func safeExecute(ctx context.Context, tool Tool, args map[string]interface{}) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", tool.Name(), "panic", rec)
			result = Errorf("tool %s panicked: %v", tool.Name(), rec)
		}
	}()

	result = tool.Execute(ctx, args)
	if result == nil {
		result = Errorf("tool %s returned no result", tool.Name())
	}
	return result
}

// ProviderDefs returns tool definitions for the chat-completions API,
// in registration order.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, ToProviderDef(r.tools[name]))
	}
	return defs
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
