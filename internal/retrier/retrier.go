// Package retrier executes operations with bounded retries and configurable
// backoff. Only errors the caller classifies as retryable are retried.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff doubles (by factor) the interval between attempts.
// LinearBackoff grows the interval by the base delay each attempt.
const (
	ExponentialBackoff Strategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// Strategy selects how the delay between attempts grows.
type Strategy int

// Retrier runs a function with retries according to its backoff settings.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	factor      float64
	jitter      float64
	strategy    Strategy

	// RetryableFunc classifies errors. When nil, no error is retried.
	RetryableFunc func(error) bool
}

// New creates a Retrier.
// Parameters:
// - maxAttempts: maximum number of attempts, including the first.
// - baseDelay: delay before the first retry.
// - maxDelay: upper bound for any single delay.
// - factor: multiplier for exponential backoff.
// - jitter: randomness factor in [0, 1] to avoid retry storms.
// - retryableFunc: predicate deciding whether an error is worth retrying.
func New(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64, strategy Strategy, retryableFunc func(error) bool) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}

	return &Retrier{
		maxAttempts:   maxAttempts,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		factor:        factor,
		jitter:        jitter,
		strategy:      strategy,
		RetryableFunc: retryableFunc,
	}, nil
}

// Run executes fn, retrying retryable failures until the attempt budget is
// exhausted or the context is done.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if r.RetryableFunc == nil || !r.RetryableFunc(err) {
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// delay computes the wait before the retry following the given attempt.
func (r *Retrier) delay(attempt int) time.Duration {
	var d float64
	switch r.strategy {
	case LinearBackoff:
		d = float64(r.baseDelay) * float64(attempt+1)
	default:
		d = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}

	d += rand.Float64() * r.jitter * d
	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}
	return time.Duration(d)
}
