package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"goflare.io/hearth/internal/backend"
	"goflare.io/hearth/internal/config"
	"goflare.io/hearth/internal/retrier"
)

// Resilient wraps a backend.Store with bounded timeouts, retries for
// transient failures, and a circuit breaker. It implements backend.Store so
// every collaborator (tag index, stats) shares the same policy.
type Resilient struct {
	store   backend.Store
	retrier *retrier.Retrier
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewResilient builds the resilience wrapper from config.
func NewResilient(store backend.Store, cfg config.ResilienceConfig, timeout time.Duration) (*Resilient, error) {
	r, err := retrier.New(
		cfg.MaxRetries,
		cfg.BaseDelay,
		cfg.MaxDelay,
		cfg.Factor,
		cfg.Jitter,
		retrier.ExponentialBackoff,
		backend.IsRetryable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	return &Resilient{
		store:   store,
		retrier: r,
		breaker: gobreaker.NewCircuitBreaker(cfg.CircuitBreaker),
		timeout: timeout,
	}, nil
}

// run executes fn under the shared timeout, retry, and breaker policy.
func (r *Resilient) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.retrier.Run(ctx, func() error { return fn(ctx) })
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker open", backend.ErrConnection)
	}
	return err
}

// runOnce executes fn under the timeout and breaker but with no retries, for
// operations that are not safe to repeat.
func (r *Resilient) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker open", backend.ErrConnection)
	}
	return err
}

// Get retrieves the bytes under key.
func (r *Resilient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var found bool
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		data, found, err = r.store.Get(ctx, key)
		return err
	})
	return data, found, err
}

// SetWithTTL writes data under key.
func (r *Resilient) SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.store.SetWithTTL(ctx, key, data, ttl)
	})
}

// Delete removes keys.
func (r *Resilient) Delete(ctx context.Context, keys ...string) (int64, error) {
	var removed int64
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		removed, err = r.store.Delete(ctx, keys...)
		return err
	})
	return removed, err
}

// Exists reports key presence.
func (r *Resilient) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		found, err = r.store.Exists(ctx, key)
		return err
	})
	return found, err
}

// Expire resets a key's TTL.
func (r *Resilient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.store.Expire(ctx, key, ttl)
	})
}

// IncrBy atomically adds delta to the counter under key. Never retried: a
// timed-out increment may already have been applied server-side, and a retry
// would count it twice.
func (r *Resilient) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	err := r.runOnce(ctx, func(ctx context.Context) error {
		var err error
		value, err = r.store.IncrBy(ctx, key, delta)
		return err
	})
	return value, err
}

// KeysMatching lists keys matching pattern.
func (r *Resilient) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		keys, err = r.store.KeysMatching(ctx, pattern)
		return err
	})
	return keys, err
}

// MembersOf lists the members of a set.
func (r *Resilient) MembersOf(ctx context.Context, setKey string) ([]string, error) {
	var members []string
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		members, err = r.store.MembersOf(ctx, setKey)
		return err
	})
	return members, err
}

// AddMember adds members to a set.
func (r *Resilient) AddMember(ctx context.Context, setKey string, members ...string) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.store.AddMember(ctx, setKey, members...)
	})
}

// FlushAll removes every key.
func (r *Resilient) FlushAll(ctx context.Context) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.store.FlushAll(ctx)
	})
}

// KeyCount returns the store's key count.
func (r *Resilient) KeyCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.store.KeyCount(ctx)
		return err
	})
	return n, err
}

// MemoryUsed returns the store's reported memory consumption.
func (r *Resilient) MemoryUsed(ctx context.Context) (int64, error) {
	var used int64
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		used, err = r.store.MemoryUsed(ctx)
		return err
	})
	return used, err
}

// Connect establishes the connection. Not routed through the breaker: a cold
// breaker must not block startup.
func (r *Resilient) Connect(ctx context.Context) error {
	return r.store.Connect(ctx)
}

// IsConnected reports connection health.
func (r *Resilient) IsConnected() bool {
	return r.store.IsConnected()
}

// Close releases the connection.
func (r *Resilient) Close() error {
	return r.store.Close()
}
