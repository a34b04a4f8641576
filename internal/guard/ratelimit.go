package guard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of a guard check.
type Result struct {
	Allowed bool
	Reason  string
	Guard   string
}

// RateLimiter implements a sliding-window limit per key. It protects the
// prediction write endpoints from bursty clients hammering the deadline.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Check records a hit for the key and returns whether it is within the limit.
func (rl *RateLimiter) Check(_ context.Context, key string) Result {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	fresh := rl.hits[key][:0]
	for _, at := range rl.hits[key] {
		if at.After(cutoff) {
			fresh = append(fresh, at)
		}
	}

	if len(fresh) >= rl.limit {
		rl.hits[key] = fresh
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d requests per %s", rl.limit, rl.window),
			Guard:   "rate_limit",
		}
	}

	rl.hits[key] = append(fresh, now)
	return Result{Allowed: true}
}

// Reset clears the window for a key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.hits, key)
}
