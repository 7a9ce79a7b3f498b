package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter keeps one token bucket per key. A nil *RateLimiter never waits.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	entries map[string]*entry
	waits   int
	mu      sync.Mutex
	log     *slog.Logger
}

// New returns nil when rps is not positive, which disables limiting.
func New(rps float64, burst int, log *slog.Logger) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = defaultBurst
	}

	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		entries: make(map[string]*entry),
		log:     log,
	}
}

// Wait blocks until a token for key is available or ctx is done. A wait that
// would outlast the ctx deadline fails at once with context.DeadlineExceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil {
		return nil
	}

	limiter := rl.limiter(key)
	if limiter.Tokens() < 1 {
		rl.log.DebugContext(ctx, "Rate limiting request",
			"key", key)
	}

	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("wait (key = %s): %w: %w", key, context.DeadlineExceeded, err)
		}

		return fmt.Errorf("wait (key = %s): %w", key, err)
	}

	return nil
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	return len(rl.entries)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.waits++
	if rl.waits%pruneInterval == 0 {
		rl.pruneLocked(now)
	}

	e, ok := rl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.entries[key] = e
	}
	e.lastUsed = now

	return e.limiter
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, e := range rl.entries {
		if now.Sub(e.lastUsed) > idleKeyTTL {
			delete(rl.entries, key)
		}
	}
}
