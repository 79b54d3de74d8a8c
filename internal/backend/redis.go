package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store on top of a Redis connection owned by a
// ConnectionManager. Every operation reports its outcome to the manager so
// that health state tracks real traffic, not just pings.
type RedisStore struct {
	conn   *ConnectionManager
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore bound to the given connection manager.
func NewRedisStore(conn *ConnectionManager, logger *zap.Logger) *RedisStore {
	return &RedisStore{conn: conn, logger: logger}
}

// Get returns the bytes stored under key, or found=false when absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.conn.Client().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.conn.ReportSuccess()
			return nil, false, nil
		}
		return nil, false, s.fail("get", err)
	}
	s.conn.ReportSuccess()
	return data, true, nil
}

// SetWithTTL writes data under key with the given time to live.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.conn.Client().Set(ctx, key, data, ttl).Err(); err != nil {
		return s.fail("set", err)
	}
	s.conn.ReportSuccess()
	return nil
}

// Delete removes the given keys, returning how many actually existed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := s.conn.Client().Del(ctx, keys...).Result()
	if err != nil {
		return 0, s.fail("delete", err)
	}
	s.conn.ReportSuccess()
	return removed, nil
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.conn.Client().Exists(ctx, key).Result()
	if err != nil {
		return false, s.fail("exists", err)
	}
	s.conn.ReportSuccess()
	return n > 0, nil
}

// Expire resets the TTL of an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.conn.Client().Expire(ctx, key, ttl).Err(); err != nil {
		return s.fail("expire", err)
	}
	s.conn.ReportSuccess()
	return nil
}

// IncrBy atomically adds delta to the counter under key.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	value, err := s.conn.Client().IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, s.fail("incrby", err)
	}
	s.conn.ReportSuccess()
	return value, nil
}

// KeysMatching returns every key matching the glob pattern using SCAN.
// Iterates the whole keyspace; keep off hot paths.
func (s *RedisStore) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.conn.Client().Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, s.fail("scan", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	s.conn.ReportSuccess()
	return keys, nil
}

// MembersOf returns the members of the set stored under setKey.
func (s *RedisStore) MembersOf(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.conn.Client().SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, s.fail("smembers", err)
	}
	s.conn.ReportSuccess()
	return members, nil
}

// AddMember adds members to the set stored under setKey.
func (s *RedisStore) AddMember(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, member := range members {
		args[i] = member
	}
	if err := s.conn.Client().SAdd(ctx, setKey, args...).Err(); err != nil {
		return s.fail("sadd", err)
	}
	s.conn.ReportSuccess()
	return nil
}

// FlushAll removes every key in the current database.
func (s *RedisStore) FlushAll(ctx context.Context) error {
	if err := s.conn.Client().FlushDB(ctx).Err(); err != nil {
		return s.fail("flushdb", err)
	}
	s.conn.ReportSuccess()
	return nil
}

// KeyCount returns the number of keys in the current database.
func (s *RedisStore) KeyCount(ctx context.Context) (int64, error) {
	n, err := s.conn.Client().DBSize(ctx).Result()
	if err != nil {
		return 0, s.fail("dbsize", err)
	}
	s.conn.ReportSuccess()
	return n, nil
}

// MemoryUsed parses used_memory from INFO. Returns 0 without error when the
// store cannot report it (test doubles, restricted deployments).
func (s *RedisStore) MemoryUsed(ctx context.Context) (int64, error) {
	info, err := s.conn.Client().Info(ctx, "memory").Result()
	if err != nil {
		s.logger.Debug("INFO memory unavailable", zap.Error(err))
		return 0, nil
	}
	s.conn.ReportSuccess()

	for _, line := range strings.Split(info, "\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return 0, nil
			}
			return used, nil
		}
	}
	return 0, nil
}

// Connect establishes the connection.
func (s *RedisStore) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// IsConnected reports connection health.
func (s *RedisStore) IsConnected() bool {
	return s.conn.Healthy()
}

// Close releases the connection.
func (s *RedisStore) Close() error {
	return s.conn.Close()
}

// fail normalizes a store error into the backend taxonomy and feeds the
// connection manager.
func (s *RedisStore) fail(op string, err error) error {
	s.conn.ReportFailure(err)

	switch {
	case IsAuth(err):
		return fmt.Errorf("%w: %s: %v", ErrAuth, op, err)
	case IsTimeout(err):
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	case IsRetryable(err):
		return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
	default:
		return fmt.Errorf("redis %s failed: %w", op, err)
	}
}
