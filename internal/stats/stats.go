// Package stats tracks process-local hit/miss counters and derives
// observability metrics from them plus live backing-store figures.
package stats

import (
	"context"

	"go.uber.org/atomic"

	"goflare.io/hearth/internal/backend"
)

// Snapshot is a point-in-time view of cache effectiveness and store size.
type Snapshot struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hitRate"`
	TotalKeys  int64   `json:"totalKeys"`
	MemoryUsed int64   `json:"memoryUsed"`
}

// Collector owns the hit/miss counters. TotalKeys and MemoryUsed are queried
// live from the backing store at snapshot time; the store is the source of
// truth for its own size.
type Collector struct {
	hits   *atomic.Uint64
	misses *atomic.Uint64
	store  backend.Store
}

// NewCollector creates a Collector with zeroed counters.
func NewCollector(store backend.Store) *Collector {
	return &Collector{
		hits:   atomic.NewUint64(0),
		misses: atomic.NewUint64(0),
		store:  store,
	}
}

// Hit records a cache hit.
func (c *Collector) Hit() {
	c.hits.Inc()
}

// Miss records a cache miss.
func (c *Collector) Miss() {
	c.misses.Inc()
}

// Reset zeroes the counters. Called only on explicit flush.
func (c *Collector) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Snapshot returns current counters and live store figures. HitRate is 0
// when no observations have been recorded.
func (c *Collector) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}

	totalKeys, err := c.store.KeyCount(ctx)
	if err != nil {
		return snap, err
	}
	snap.TotalKeys = totalKeys

	memoryUsed, err := c.store.MemoryUsed(ctx)
	if err != nil {
		return snap, err
	}
	snap.MemoryUsed = memoryUsed

	return snap, nil
}
