package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"goflare.io/hearth/internal/backend"
	"goflare.io/hearth/internal/config"
)

// countingStore fails every call with a retryable error while counting how
// often each operation is attempted. Embedding the interface leaves the
// remaining methods panicking if a test reaches them unexpectedly.
type countingStore struct {
	backend.Store
	getCalls  *atomic.Int64
	incrCalls *atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.getCalls.Inc()
	return nil, false, fmt.Errorf("%w: connection refused", backend.ErrConnection)
}

func (c *countingStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	c.incrCalls.Inc()
	return 0, fmt.Errorf("%w: connection refused", backend.ErrConnection)
}

func newCountingResilient(t *testing.T) (*countingStore, *Resilient) {
	t.Helper()

	cfg := config.New()
	cfg.Resilience.MaxRetries = 3
	cfg.Resilience.BaseDelay = time.Millisecond
	cfg.Resilience.MaxDelay = 5 * time.Millisecond

	counting := &countingStore{
		getCalls:  atomic.NewInt64(0),
		incrCalls: atomic.NewInt64(0),
	}
	res, err := NewResilient(counting, cfg.Resilience, cfg.OpTimeout)
	require.NoError(t, err)
	return counting, res
}

func TestResilient_RetriesTransientReadFailures(t *testing.T) {
	counting, res := newCountingResilient(t)

	_, _, err := res.Get(context.Background(), "k")
	require.Error(t, err)
	assert.EqualValues(t, 3, counting.getCalls.Load())
}

func TestResilient_NeverRetriesIncrements(t *testing.T) {
	counting, res := newCountingResilient(t)

	// An increment that timed out may already have landed server-side, so a
	// retry would double-count. Exactly one attempt regardless of the error
	// class.
	_, err := res.IncrBy(context.Background(), "counter", 1)
	require.Error(t, err)
	assert.EqualValues(t, 1, counting.incrCalls.Load())
}
