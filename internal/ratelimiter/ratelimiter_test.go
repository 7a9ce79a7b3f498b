package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNilRateLimiterNeverWaits(t *testing.T) {
	var rl *RateLimiter
	if err := rl.Wait(context.Background(), "host"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if New(0, 1, slog.Default()) != nil {
		t.Fatalf("expected disabled limiter to be nil")
	}
}

func TestRateLimiterSpacesRequestsPerKey(t *testing.T) {
	rl := New(20, 1, slog.Default())
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := rl.Wait(ctx, "a.example"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected requests to be spaced, elapsed %s", elapsed)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := New(1, 1, slog.Default())
	ctx := context.Background()

	start := time.Now()
	for _, key := range []string{"a.example", "b.example", "c.example"} {
		if err := rl.Wait(ctx, key); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected distinct keys not to wait, elapsed %s", elapsed)
	}

	if rl.Len() != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", rl.Len())
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := New(0.1, 1, slog.Default())

	if err := rl.Wait(context.Background(), "a.example"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx, "a.example"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected the wait to fail early, elapsed %s", elapsed)
	}
}

func TestRateLimiterWaitReturnsOnCancel(t *testing.T) {
	rl := New(0.1, 1, slog.Default())

	if err := rl.Wait(context.Background(), "a.example"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := rl.Wait(ctx, "a.example"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}
