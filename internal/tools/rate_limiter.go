package tools

import (
	"fmt"
	"sync"
	"time"
)

// ToolRateLimiter is a sliding-window limiter for tool executions,
// tracked per session key.
type ToolRateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	max     int
	window  time.Duration
}

// NewToolRateLimiter creates a limiter allowing max executions per
// window. Pass max <= 0 to disable (returns nil).
func NewToolRateLimiter(max int, window time.Duration) *ToolRateLimiter {
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Hour
	}
	return &ToolRateLimiter{
		windows: make(map[string][]time.Time),
		max:     max,
		window:  window,
	}
}

// Allow checks if a tool execution is allowed for the given key.
// Returns nil if allowed, or an error describing the rate limit.
func (rl *ToolRateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Prune expired entries
	entries := rl.windows[key]
	start := 0
	for start < len(entries) && entries[start].Before(cutoff) {
		start++
	}
	entries = entries[start:]

	if len(entries) >= rl.max {
		return fmt.Errorf("tool rate limit exceeded: %d calls per %s for session %s", rl.max, rl.window, key)
	}

	rl.windows[key] = append(entries, now)
	return nil
}

// Cleanup removes stale entries older than the window. Call
// periodically to prevent memory growth.
func (rl *ToolRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for key, entries := range rl.windows {
		start := 0
		for start < len(entries) && entries[start].Before(cutoff) {
			start++
		}
		if start == len(entries) {
			delete(rl.windows, key)
		} else {
			rl.windows[key] = entries[start:]
		}
	}
}
