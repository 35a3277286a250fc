package ratelimit

import (
	"sync"
	"time"
)

type counter struct {
	Count     int
	LastReset time.Time
}

// RateLimiter allows up to limit calls per key in each fixed window.
type RateLimiter struct {
	limit    int
	window   time.Duration
	counters map[string]*counter
	mu       sync.Mutex
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*counter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// IsAllowed counts one call for key. A limit of 0 or less disables limiting.
func (rl *RateLimiter) IsAllowed(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, exists := rl.counters[key]
	if !exists {
		rl.counters[key] = &counter{Count: 1, LastReset: now}
		return true
	}

	if now.Sub(c.LastReset) >= rl.window {
		c.Count = 1
		c.LastReset = now
		return true
	}

	if c.Count >= rl.limit {
		return false
	}

	c.Count++
	return true
}

// Forget drops the counter for key, e.g. when a session ends.
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	delete(rl.counters, key)
	rl.mu.Unlock()
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, c := range rl.counters {
		if now.Sub(c.LastReset) >= rl.window {
			delete(rl.counters, key)
		}
	}
}
