package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectionManager_ConnectAndHealth(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	assert.False(t, m.Healthy())

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Healthy())

	require.NoError(t, m.Close())
	assert.False(t, m.Healthy())
}

func TestConnectionManager_ConnectFailsWhenUnreachable(t *testing.T) {
	m := NewConnectionManager(&redis.Options{Addr: "127.0.0.1:1"}, zap.NewNop())

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, m.Healthy())
}

func TestConnectionManager_RetryableFailureMarksUnhealthy(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))

	// Take the server down so the background reconnect loop cannot race the
	// assertion by recovering immediately.
	mr.Close()
	m.ReportFailure(errors.New("READONLY You can't write against a read only replica."))
	assert.False(t, m.Healthy())
}

func TestConnectionManager_ReconnectsAfterFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	m.baseDelay = 5 * time.Millisecond
	require.NoError(t, m.Connect(context.Background()))

	// The store itself is still up, so the background loop recovers quickly.
	m.ReportFailure(errors.New("connection reset by peer"))

	assert.Eventually(t, m.Healthy, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionManager_CloseStopsReconnectLoop(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	m.baseDelay = 5 * time.Millisecond
	require.NoError(t, m.Connect(context.Background()))

	// Take the server down for good so the loop can never succeed.
	mr.Close()
	m.ReportFailure(errors.New("connection refused"))
	require.NoError(t, m.Close())

	// The loop must observe the cancellation and exit instead of backing off
	// against a closed client forever.
	assert.Eventually(t, func() bool { return !m.reconnecting.Load() },
		2*time.Second, 10*time.Millisecond)

	// A failure reported after Close must not start a new loop.
	m.ReportFailure(errors.New("connection refused"))
	assert.False(t, m.reconnecting.Load())
}

func TestConnectionManager_AuthFailuresLatchFatal(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))

	authErr := errors.New("WRONGPASS invalid username-password pair")
	for i := 0; i < defaultMaxAuthAttempts; i++ {
		m.ReportFailure(authErr)
	}

	assert.False(t, m.Healthy())

	// A successful op must not resurrect a fatally failed manager.
	m.ReportSuccess()
	assert.False(t, m.Healthy())
}

func TestConnectionManager_NonRetryableDoesNotFlapHealth(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m := NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))

	m.ReportFailure(errors.New("value is not an integer"))
	assert.True(t, m.Healthy())
}
