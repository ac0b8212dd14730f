package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Catalog holds the last parsed copy of the feed.
type Catalog struct {
	fetcher *Fetcher

	mu        sync.RWMutex
	events    []ExploreEvent
	hash      string
	updatedAt time.Time
}

func NewCatalog(fetcher *Fetcher) *Catalog {
	return &Catalog{fetcher: fetcher}
}

// Refresh downloads and parses the feed. Parsing is skipped when the body
// hasn't changed since the last refresh.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	result, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("(*Catalog).Refresh: %w", err)
	}

	c.mu.RLock()
	unchanged := result.Hash == c.hash && c.events != nil
	count := len(c.events)
	c.mu.RUnlock()
	if unchanged {
		return count, nil
	}

	events, err := Parse(bytes.NewReader(result.Body))
	if err != nil {
		return 0, fmt.Errorf("(*Catalog).Refresh: %w", err)
	}

	c.mu.Lock()
	c.events = events
	c.hash = result.Hash
	c.updatedAt = time.Now()
	c.mu.Unlock()

	slog.Info("feed catalog refreshed", "events", len(events), "from_cache", result.FromCache)
	return len(events), nil
}

// Events returns the catalog, loading it on first use.
func (c *Catalog) Events(ctx context.Context) ([]ExploreEvent, error) {
	c.mu.RLock()
	events := c.events
	c.mu.RUnlock()
	if events != nil {
		return events, nil
	}
	if _, err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events, nil
}

func (c *Catalog) Find(ctx context.Context, id uuid.UUID) (ExploreEvent, bool, error) {
	events, err := c.Events(ctx)
	if err != nil {
		return ExploreEvent{}, false, err
	}
	e, ok := Find(events, id)
	return e, ok, nil
}

func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
