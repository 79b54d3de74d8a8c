package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// negativeFilter short-circuits reads for keys this process never wrote.
// A negative answer is definitive only when this process is the sole writer
// of its namespace; the engine enables it solely under that configuration.
type negativeFilter struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	items    uint
	failRate float64
}

func newNegativeFilter(items uint, failRate float64) *negativeFilter {
	return &negativeFilter{
		filter:   bloom.NewWithEstimates(items, failRate),
		items:    items,
		failRate: failRate,
	}
}

// Add records that key has been written.
func (f *negativeFilter) Add(key string) {
	f.mu.Lock()
	f.filter.Add([]byte(key))
	f.mu.Unlock()
}

// Test reports whether key may have been written. False means definitely not.
func (f *negativeFilter) Test(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.Test([]byte(key))
}

// Reset forgets all recorded keys. Called on flush.
func (f *negativeFilter) Reset() {
	f.mu.Lock()
	f.filter = bloom.NewWithEstimates(f.items, f.failRate)
	f.mu.Unlock()
}
