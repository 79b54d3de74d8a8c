package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"readonly replica", errors.New("READONLY You can't write against a read only replica."), true},
		{"loading dataset", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"cluster down", errors.New("CLUSTERDOWN The cluster is down"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped timeout", fmt.Errorf("op: %w", ErrTimeout), true},
		{"wrapped connection", fmt.Errorf("op: %w", ErrConnection), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), true},
		{"auth noauth", errors.New("NOAUTH Authentication required."), false},
		{"auth wrongpass", errors.New("WRONGPASS invalid username-password pair"), false},
		{"plain application error", errors.New("value is not an integer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(errors.New("NOAUTH Authentication required.")))
	assert.True(t, IsAuth(fmt.Errorf("connect: %w", ErrAuth)))
	assert.False(t, IsAuth(errors.New("READONLY")))
	assert.False(t, IsAuth(nil))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("get: %w", ErrTimeout)))
	assert.False(t, IsTimeout(errors.New("READONLY")))
}
