package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const defaultMaxAuthAttempts = 3

// ConnectionManager owns the Redis client and its resilience policy: health
// signaling, reconnection with exponential backoff, and the distinction
// between transient failures (reconnect) and auth failures (fatal after a
// bounded number of attempts). Safe for concurrent use without external
// locking; go-redis pools connections internally.
type ConnectionManager struct {
	client *redis.Client
	logger *zap.Logger

	healthy      *atomic.Bool
	reconnecting *atomic.Bool
	fatal        *atomic.Bool
	authFailures *atomic.Int64

	// stopCtx is cancelled by Close; it bounds reconnect pings and sleeps so
	// the reconnect goroutine cannot outlive the manager.
	stopCtx context.Context
	stop    context.CancelFunc

	maxAuthAttempts int64
	baseDelay       time.Duration
	maxDelay        time.Duration
}

// NewConnectionManager creates a manager for the given Redis options. The
// connection is not established until Connect.
func NewConnectionManager(opts *redis.Options, logger *zap.Logger) *ConnectionManager {
	stopCtx, stop := context.WithCancel(context.Background())
	return &ConnectionManager{
		client:          redis.NewClient(opts),
		logger:          logger,
		healthy:         atomic.NewBool(false),
		reconnecting:    atomic.NewBool(false),
		fatal:           atomic.NewBool(false),
		authFailures:    atomic.NewInt64(0),
		stopCtx:         stopCtx,
		stop:            stop,
		maxAuthAttempts: defaultMaxAuthAttempts,
		baseDelay:       100 * time.Millisecond,
		maxDelay:        30 * time.Second,
	}
}

// Connect verifies the store is reachable and marks the connection healthy.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		m.healthy.Store(false)
		if IsAuth(err) {
			m.fatal.Store(true)
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	m.healthy.Store(true)
	m.fatal.Store(false)
	m.authFailures.Store(0)
	return nil
}

// Client returns the underlying Redis client.
func (m *ConnectionManager) Client() *redis.Client {
	return m.client
}

// Healthy reports the current connection state. Operational health checks
// read this; the manager does not itself act on an unhealthy signal.
func (m *ConnectionManager) Healthy() bool {
	return m.healthy.Load() && !m.fatal.Load()
}

// ReportSuccess records a successful store operation.
func (m *ConnectionManager) ReportSuccess() {
	if !m.healthy.Load() && !m.fatal.Load() {
		m.healthy.Store(true)
	}
}

// ReportFailure records a failed store operation and, for retryable error
// classes, kicks off a background reconnection attempt. Auth failures are
// counted and latch the manager fatal once the bounded budget is spent.
func (m *ConnectionManager) ReportFailure(err error) {
	if err == nil {
		return
	}

	if IsAuth(err) {
		if m.authFailures.Inc() >= m.maxAuthAttempts {
			m.fatal.Store(true)
			m.healthy.Store(false)
			m.logger.Error("Authentication failed repeatedly, giving up on reconnection",
				zap.Int64("attempts", m.authFailures.Load()), zap.Error(err))
		}
		return
	}

	if !IsRetryable(err) {
		return
	}

	m.healthy.Store(false)
	if m.stopCtx.Err() != nil {
		return
	}
	if m.reconnecting.CompareAndSwap(false, true) {
		go m.reconnectLoop()
	}
}

// reconnectLoop pings the store with exponential backoff until it answers,
// the manager latches fatal, or Close cancels the stop context. At most one
// loop runs at a time.
func (m *ConnectionManager) reconnectLoop() {
	defer m.reconnecting.Store(false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.baseDelay
	bo.MaxInterval = m.maxDelay
	bo.MaxElapsedTime = 0

	for !m.fatal.Load() && m.stopCtx.Err() == nil {
		ctx, cancel := context.WithTimeout(m.stopCtx, 5*time.Second)
		err := m.client.Ping(ctx).Err()
		cancel()

		if err == nil {
			m.healthy.Store(true)
			m.logger.Info("Reconnected to backing store")
			return
		}
		if m.stopCtx.Err() != nil {
			return
		}

		if IsAuth(err) {
			if m.authFailures.Inc() >= m.maxAuthAttempts {
				m.fatal.Store(true)
				m.logger.Error("Authentication failed during reconnection, giving up", zap.Error(err))
				return
			}
		}

		wait := bo.NextBackOff()
		m.logger.Warn("Backing store still unreachable, retrying",
			zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-m.stopCtx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// IsConnected reports the connection state.
func (m *ConnectionManager) IsConnected() bool {
	return m.Healthy()
}

// Close stops any in-flight reconnection attempt and releases the underlying
// client.
func (m *ConnectionManager) Close() error {
	m.stop()
	m.healthy.Store(false)
	return m.client.Close()
}
