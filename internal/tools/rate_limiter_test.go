package tools

import (
	"testing"
	"time"
)

func TestNewToolRateLimiter_Disabled(t *testing.T) {
	if rl := NewToolRateLimiter(0, time.Hour); rl != nil {
		t.Errorf("expected nil for max=0, got %v", rl)
	}
	if rl := NewToolRateLimiter(-5, time.Hour); rl != nil {
		t.Errorf("expected nil for max=-5, got %v", rl)
	}
}

func TestToolRateLimiter_AllowUnderLimit(t *testing.T) {
	rl := NewToolRateLimiter(5, time.Hour)
	for i := 0; i < 5; i++ {
		if err := rl.Allow("web:alice"); err != nil {
			t.Errorf("call %d should be allowed: %v", i, err)
		}
	}
}

func TestToolRateLimiter_BlockOverLimit(t *testing.T) {
	rl := NewToolRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if err := rl.Allow("web:alice"); err != nil {
			t.Fatalf("call %d should be allowed: %v", i, err)
		}
	}

	if err := rl.Allow("web:alice"); err == nil {
		t.Error("4th call should be blocked")
	}
}

func TestToolRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewToolRateLimiter(2, time.Hour)

	rl.Allow("web:alice")
	rl.Allow("web:alice")

	if err := rl.Allow("web:alice"); err == nil {
		t.Error("web:alice should be blocked")
	}

	if err := rl.Allow("web:bob"); err != nil {
		t.Errorf("web:bob should be allowed: %v", err)
	}
}

func TestToolRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewToolRateLimiter(2, 100*time.Millisecond)

	rl.Allow("key1")
	rl.Allow("key1")

	if err := rl.Allow("key1"); err == nil {
		t.Error("should be blocked at limit")
	}

	time.Sleep(150 * time.Millisecond)

	if err := rl.Allow("key1"); err != nil {
		t.Errorf("should be allowed after window expiry: %v", err)
	}
}

func TestToolRateLimiter_Cleanup(t *testing.T) {
	rl := NewToolRateLimiter(10, 50*time.Millisecond)

	rl.Allow("key1")
	rl.Allow("key2")

	time.Sleep(100 * time.Millisecond)
	rl.Cleanup()

	rl.mu.Lock()
	count := len(rl.windows)
	rl.mu.Unlock()

	if count != 0 {
		t.Errorf("cleanup should remove all expired entries, got %d", count)
	}
}

func TestToolRateLimiter_CleanupPartial(t *testing.T) {
	rl := NewToolRateLimiter(10, 200*time.Millisecond)

	rl.Allow("key1") // will expire
	time.Sleep(100 * time.Millisecond)
	rl.Allow("key1") // still fresh

	time.Sleep(150 * time.Millisecond)
	rl.Cleanup()

	rl.mu.Lock()
	entries := len(rl.windows["key1"])
	rl.mu.Unlock()

	if entries != 1 {
		t.Errorf("expected 1 remaining entry, got %d", entries)
	}
}
