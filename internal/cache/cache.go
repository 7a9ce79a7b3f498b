package cache

import (
	"context"
	"docdigest/internal/domain"
	"fmt"
	"log/slog"
	"sync"
)

// Store persists the slot between restarts.
type Store interface {
	SaveLatest(ctx context.Context, result *domain.AggregateResult) error
	// LoadLatest returns nil when nothing was saved yet.
	LoadLatest(ctx context.Context) (*domain.AggregateResult, error)
}

// Cache holds the most recently completed aggregate result.
type Cache struct {
	mu     sync.RWMutex
	latest *domain.AggregateResult
	store  Store
	log    *slog.Logger
}

// New creates an empty cache. store may be nil.
func New(store Store, log *slog.Logger) *Cache {
	return &Cache{store: store, log: log}
}

// Restore loads the slot from the store.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	result, err := c.store.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load latest: %w", err)
	}
	if result == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil || !result.CompletedAt.Before(c.latest.CompletedAt) {
		c.latest = result
	}

	return nil
}

// Publish replaces the slot unless it holds a result that completed later.
// Store failures are logged.
func (c *Cache) Publish(ctx context.Context, result *domain.AggregateResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	if c.latest != nil && result.CompletedAt.Before(c.latest.CompletedAt) {
		latestBatchID := c.latest.BatchID
		c.mu.Unlock()

		c.log.InfoContext(ctx, "Skipping stale result",
			"batchID", result.BatchID,
			"completedAt", result.CompletedAt,
			"latestBatchID", latestBatchID)

		return
	}
	c.latest = result
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	if err := c.store.SaveLatest(ctx, result); err != nil {
		c.log.ErrorContext(ctx, "Failed to save latest result",
			"error", err,
			"batchID", result.BatchID)
	}
}

// Latest returns the slot's result. The result must not be modified.
func (c *Cache) Latest() (*domain.AggregateResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.latest, c.latest != nil
}
