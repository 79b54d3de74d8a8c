// Package backend defines the narrow contract the cache layer requires from
// its backing key/value store, and provides the Redis binding used in
// production. Any store implementing Store satisfies the cache: tests run
// against an in-process Redis.
package backend

import (
	"context"
	"time"
)

// Store is the backing-store contract. All mutual exclusion the cache relies
// on (atomic increments, set membership) is delegated to the store.
type Store interface {
	// Get returns the bytes stored under key, or found=false when absent.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// SetWithTTL writes data under key with the given time to live.
	SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many actually existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// IncrBy atomically adds delta to the integer stored under key and
	// returns the new value. The atomicity guarantee is the store's.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// KeysMatching returns every key matching the glob pattern. May scan a
	// large portion of the keyspace; callers must keep it off hot paths.
	KeysMatching(ctx context.Context, pattern string) ([]string, error)

	// MembersOf returns the members of the set stored under setKey.
	MembersOf(ctx context.Context, setKey string) ([]string, error)

	// AddMember adds members to the set stored under setKey, creating it if
	// needed. Adding an existing member is a no-op.
	AddMember(ctx context.Context, setKey string, members ...string) error

	// FlushAll removes every key in the store's namespace.
	FlushAll(ctx context.Context) error

	// KeyCount returns the number of keys currently held by the store.
	KeyCount(ctx context.Context) (int64, error)

	// MemoryUsed returns the store's reported memory consumption in bytes,
	// or 0 when the store cannot report it.
	MemoryUsed(ctx context.Context) (int64, error)

	// Connect establishes the connection to the store.
	Connect(ctx context.Context) error

	// IsConnected reports the current health of the connection.
	IsConnected() bool

	// Close releases the connection.
	Close() error
}
