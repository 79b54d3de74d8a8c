package backend

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

var (
	// ErrConnection indicates the backing store is unreachable.
	ErrConnection = errors.New("backing store unreachable")
	// ErrTimeout indicates a backing-store call exceeded its deadline.
	ErrTimeout = errors.New("backing store operation timed out")
	// ErrAuth indicates the store rejected our credentials. Never retried
	// indefinitely; surfaces as fatal after a bounded number of attempts.
	ErrAuth = errors.New("backing store authentication failed")
)

// transient server replies that resolve on their own or after a failover.
var transientReplies = []string{
	"READONLY",    // replica serving during failover
	"LOADING",     // store still loading its dataset
	"CLUSTERDOWN", // cluster reconfiguring
	"TRYAGAIN",
}

var authReplies = []string{
	"NOAUTH",
	"WRONGPASS",
	"invalid password",
	"invalid username-password pair",
}

// IsRetryable reports whether err is worth retrying: timeouts, network
// failures, and transient server states. Auth failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil || IsAuth(err) {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrConnection) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, reply := range transientReplies {
		if strings.HasPrefix(msg, reply) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return true
	}

	msg := err.Error()
	for _, reply := range authReplies {
		if strings.Contains(msg, reply) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err is a deadline violation.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
