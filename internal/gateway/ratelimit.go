package gateway

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a per-key token bucket to inbound requests. Keys
// are connection IDs for WebSocket clients and tokens or addresses for
// HTTP callers. rpm <= 0 disables limiting.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 5
	}
	var limit rate.Limit
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60.0)
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
	}
	if rl.Enabled() {
		go rl.sweep()
	}
	return rl
}

// Enabled reports whether limiting is active.
func (rl *RateLimiter) Enabled() bool { return rl.limit > 0 }

// Allow reports whether a request under key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()

	if !b.lim.Allow() {
		slog.Warn("request rate limited", "key", key)
		return false
	}
	return true
}

// sweep drops buckets idle for over ten minutes.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
