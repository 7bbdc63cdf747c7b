package tools

import "context"

// Typed context keys for per-call tool metadata. Values are injected by
// the registry so tool instances stay free of mutable fields and safe
// for concurrent execution.
type contextKey string

const (
	sessionKeyCtxKey contextKey = "tool_session_key"
	runIDCtxKey      contextKey = "tool_run_id"
)

// WithSessionKey attaches the owning session key to the context.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtxKey, key)
}

// SessionKeyFromCtx returns the session key, or "" when unset.
func SessionKeyFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKeyCtxKey).(string); ok {
		return v
	}
	return ""
}

// WithRunID attaches the current run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDCtxKey, runID)
}

// RunIDFromCtx returns the run ID, or "" when unset.
func RunIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(runIDCtxKey).(string); ok {
		return v
	}
	return ""
}
