// Package local provides the optional per-process hot tier in front of the
// backing store. Entries carry their own expiration and are re-checked on
// every read, so a local hit can never outlive the store-side TTL.
package local

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"goflare.io/hearth/internal/models"
)

// Tier is a size-bounded in-process cache of encoded entries.
type Tier struct {
	cache      *ristretto.Cache
	tracked    sync.Map
	defaultTTL time.Duration
	logger     *zap.Logger
}

// New creates a Tier bounded to maxSize bytes of entry payload.
func New(maxSize uint64, defaultTTL time.Duration, logger *zap.Logger) (*Tier, error) {
	numCounters := int64(math.Min(float64(10*maxSize), float64(math.MaxInt64)))
	maxCost := int64(math.Min(float64(maxSize), float64(math.MaxInt64)))

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	return &Tier{
		cache:      cache,
		defaultTTL: defaultTTL,
		logger:     logger,
	}, nil
}

// Set stores an entry, costed by payload size, for the remainder of its
// lifetime.
func (t *Tier) Set(key string, entry *models.Entry) {
	ttl := time.Until(entry.Expiration)
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	cost := int64(len(entry.Data))
	if cost == 0 {
		cost = 1
	}

	if !t.cache.SetWithTTL(key, entry, cost, ttl) {
		// Admission rejected the entry; the backing store still has it.
		t.logger.Debug("Local tier rejected entry", zap.String("key", key))
		return
	}
	t.tracked.Store(key, struct{}{})
}

// Get returns the entry under key if present and unexpired.
func (t *Tier) Get(key string) (*models.Entry, bool) {
	value, found := t.cache.Get(key)
	if !found {
		return nil, false
	}

	entry, ok := value.(*models.Entry)
	if !ok {
		t.logger.Error("Invalid local cache entry type", zap.String("key", key))
		t.Delete(key)
		return nil, false
	}

	if entry.IsExpired() {
		t.Delete(key)
		return nil, false
	}

	entry.Touch()
	return entry, true
}

// Delete removes an entry. Buffered admissions are drained first so a
// pending Set for the same key cannot be applied after the delete.
func (t *Tier) Delete(key string) {
	t.cache.Wait()
	t.cache.Del(key)
	t.tracked.Delete(key)
}

// DeleteByPrefix removes every tracked entry whose key starts with prefix.
func (t *Tier) DeleteByPrefix(prefix string) {
	t.cache.Wait()
	t.tracked.Range(func(k, _ any) bool {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			t.cache.Del(key)
			t.tracked.Delete(key)
		}
		return true
	})
}

// Flush removes every entry.
func (t *Tier) Flush() {
	t.cache.Wait()
	t.cache.Clear()
	t.tracked.Range(func(k, _ any) bool {
		t.tracked.Delete(k)
		return true
	})
}

// Wait blocks until buffered admissions have been applied. Reads after Wait
// observe earlier writes; without it a Set may not be visible immediately.
func (t *Tier) Wait() {
	t.cache.Wait()
}

// Close releases the tier's resources.
func (t *Tier) Close() {
	t.cache.Close()
}
