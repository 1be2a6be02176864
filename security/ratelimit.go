package security

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultRateLimit  = 100
	DefaultRateWindow = time.Minute
)

// RateLimitResult is one limiter decision plus the header values the
// versioned API attaches to every response.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the denial hint in whole seconds, never below 1.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimiter is the counting backend. The in-process implementation is the
// default; a Redis-backed one serves multi-instance deployments.
type RateLimiter interface {
	Check(ctx context.Context, key string) (RateLimitResult, error)
	Close() error
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter counts requests in discrete windows per key. Past the
// limit the counter keeps incrementing until the window expires; a window
// boundary therefore admits up to twice the limit, an accepted trade-off of
// the fixed-window algorithm.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry

	done chan struct{}
	once sync.Once
}

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	rl := &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *FixedWindowLimiter) Check(_ context.Context, key string) (RateLimitResult, error) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{count: 0, resetAt: now.Add(rl.window)}
		rl.entries[key] = entry
	}
	entry.count++

	remaining := rl.limit - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   entry.count <= rl.limit,
		Limit:     rl.limit,
		Remaining: remaining,
		ResetAt:   entry.resetAt,
	}, nil
}

// sweep evicts expired windows to bound memory. Expired entries are never
// mutated, only replaced, so eviction cannot race an in-flight increment.
func (rl *FixedWindowLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, entry := range rl.entries {
				if !now.Before(entry.resetAt) {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *FixedWindowLimiter) Close() error {
	rl.once.Do(func() { close(rl.done) })
	return nil
}
