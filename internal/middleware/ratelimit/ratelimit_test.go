package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.IsAllowed("p1") {
			t.Fatalf("call %d refused under the limit", i+1)
		}
	}
	if rl.IsAllowed("p1") {
		t.Fatalf("fourth call allowed")
	}
	if !rl.IsAllowed("p2") {
		t.Fatalf("keys should be limited independently")
	}

	now = now.Add(time.Minute)
	if !rl.IsAllowed("p1") {
		t.Fatalf("window did not reset")
	}
}

func TestRateLimiterCleanupAndForget(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.IsAllowed("p1")
	rl.IsAllowed("p2")
	rl.Forget("p2")
	if !rl.IsAllowed("p2") {
		t.Fatalf("forgotten key still limited")
	}

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	n := len(rl.counters)
	rl.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d stale counters survived cleanup", n)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()
	for i := 0; i < 1000; i++ {
		if !rl.IsAllowed("p1") {
			t.Fatalf("disabled limiter refused call %d", i)
		}
	}
}
