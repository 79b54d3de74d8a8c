// Package hearth is a tiered caching and invalidation layer for read-heavy
// key/value and list-query workloads: deterministic key construction,
// size-triggered compression, tag-based group invalidation, cache-aside
// orchestration, and connection resilience over a Redis backing store.
package hearth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/hearth/internal/backend"
	"goflare.io/hearth/internal/config"
	"goflare.io/hearth/internal/keys"
	"goflare.io/hearth/internal/stats"
	"goflare.io/hearth/internal/store"
	"goflare.io/hearth/pkg/serialization"
)

// Options carries per-write settings: TTL override and tags to attach.
type Options = store.Options

// Fetcher computes a value on a cache miss.
type Fetcher = store.Fetcher

// Snapshot is a point-in-time view of cache statistics.
type Snapshot = stats.Snapshot

// Option configures the cache at construction time.
type Option func(*config.Config) error

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config.Config) error {
		cfg.Logger = logger
		return nil
	}
}

// WithNamespace sets the prefix applied to every key this instance touches.
func WithNamespace(namespace string) Option {
	return func(cfg *config.Config) error {
		if namespace == "" {
			return config.ErrEmptyNamespace
		}
		cfg.Namespace = namespace
		return nil
	}
}

// WithDefaultTTL sets the TTL used when a write specifies none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cfg *config.Config) error {
		if ttl <= 0 {
			return config.ErrInvalidTTL
		}
		cfg.DefaultTTL = ttl
		return nil
	}
}

// WithOpTimeout bounds every individual backing-store call.
func WithOpTimeout(timeout time.Duration) Option {
	return func(cfg *config.Config) error {
		if timeout <= 0 {
			return fmt.Errorf("op timeout must be positive")
		}
		cfg.OpTimeout = timeout
		return nil
	}
}

// WithCompressionThreshold sets the serialized size above which values are
// compressed.
func WithCompressionThreshold(bytes int) Option {
	return func(cfg *config.Config) error {
		cfg.CompressionThreshold = bytes
		return nil
	}
}

// WithSerialization selects the value codec ("json" or "gob").
func WithSerialization(codecType string) Option {
	return func(cfg *config.Config) error {
		if _, err := serialization.NewCodec(codecType); err != nil {
			return err
		}
		cfg.Serialization.Type = codecType
		return nil
	}
}

// WithLocalCache enables the per-process hot tier, bounded to maxSize bytes.
func WithLocalCache(maxSize uint64) Option {
	return func(cfg *config.Config) error {
		if maxSize == 0 {
			return fmt.Errorf("max local size must be greater than 0")
		}
		cfg.EnableLocalCache = true
		cfg.MaxLocalSize = maxSize
		return nil
	}
}

// WithSingleFlight deduplicates concurrent GetOrCompute calls for the same
// cold key. The base design accepts stampedes; enable this where redundant
// fetches are too expensive.
func WithSingleFlight() Option {
	return func(cfg *config.Config) error {
		cfg.EnableSingleFlight = true
		return nil
	}
}

// WithNegativeFilter enables the bloom-filter read short-circuit. Only
// correct when this process is the sole writer of its namespace.
func WithNegativeFilter(expectedItems uint, falsePositiveRate float64) Option {
	return func(cfg *config.Config) error {
		cfg.NegativeFilter = true
		if expectedItems > 0 {
			cfg.NegativeFilterItems = expectedItems
		}
		if falsePositiveRate > 0 {
			cfg.NegativeFilterFailRate = falsePositiveRate
		}
		return nil
	}
}

// Cache is the public face of the caching layer. Construct one per process
// with New, inject it into consumers, and Close it on shutdown.
type Cache struct {
	engine *store.Store
	logger *zap.Logger
}

// New connects to Redis and wires the cache engine.
func New(ctx context.Context, redisOptions *redis.Options, opts ...Option) (*Cache, error) {
	cfg := config.New()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %w", err)
		}
		cfg.Logger = logger
	}

	conn := backend.NewConnectionManager(redisOptions, cfg.Logger)
	raw := backend.NewRedisStore(conn, cfg.Logger)
	if err := raw.Connect(ctx); err != nil {
		return nil, err
	}

	engine, err := store.New(cfg, raw, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache engine: %w", err)
	}

	return &Cache{engine: engine, logger: cfg.Logger}, nil
}

// Get decodes the value under key into dest. Absence, timeouts, and corrupt
// entries all report found=false; the read path never fails harder than a
// miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return c.engine.Get(ctx, key, dest)
}

// Set writes value under key with the TTL and tags from opts.
func (c *Cache) Set(ctx context.Context, key string, value any, opts Options) error {
	return c.engine.Set(ctx, key, value, opts)
}

// GetOrCompute returns the cached value for key, or invokes fetcher on a
// miss and populates the cache in the background. See store.Store.GetOrCompute.
func (c *Cache) GetOrCompute(ctx context.Context, key string, dest any, fetcher Fetcher, opts Options) error {
	return c.engine.GetOrCompute(ctx, key, dest, fetcher, opts)
}

// GetMany retrieves the present-and-decodable subset of keys.
func (c *Cache) GetMany(ctx context.Context, keyList []string) (map[string]any, error) {
	return c.engine.GetMany(ctx, keyList)
}

// SetMany writes every item with shared options.
func (c *Cache) SetMany(ctx context.Context, items map[string]any, opts Options) error {
	return c.engine.SetMany(ctx, items, opts)
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.engine.Delete(ctx, key)
}

// DeleteMany removes the given keys, returning how many existed.
func (c *Cache) DeleteMany(ctx context.Context, keyList []string) (int64, error) {
	return c.engine.DeleteMany(ctx, keyList)
}

// DeleteByPrefix removes every key under the namespace matching prefix.
// Requires a keyspace scan; avoid on hot paths.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	return c.engine.DeleteByPrefix(ctx, prefix)
}

// InvalidateTag deletes every entry attached to tag and returns the number
// of keys actually removed.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) (int64, error) {
	return c.engine.InvalidateTag(ctx, tag)
}

// InvalidateTags deletes every entry attached to any of the tags, counting
// shared keys once.
func (c *Cache) InvalidateTags(ctx context.Context, tagList []string) (int64, error) {
	return c.engine.InvalidateTags(ctx, tagList)
}

// Increment atomically adds by to the counter under key.
func (c *Cache) Increment(ctx context.Context, key string, by int64) (int64, error) {
	return c.engine.Increment(ctx, key, by)
}

// Expire resets the TTL of an existing key.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.engine.Expire(ctx, key, ttl)
}

// Has reports whether key is present without decoding it.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	return c.engine.Has(ctx, key)
}

// Flush removes every key and resets statistics. Administrative operation;
// connection errors surface.
func (c *Cache) Flush(ctx context.Context) error {
	return c.engine.Flush(ctx)
}

// Stats returns hit/miss counters and live store figures.
func (c *Cache) Stats(ctx context.Context) (Snapshot, error) {
	return c.engine.Stats(ctx)
}

// Healthy reports the backing-store connection state for operational health
// checks. This layer does not itself act on an unhealthy signal.
func (c *Cache) Healthy() bool {
	return c.engine.Healthy()
}

// Wait blocks until in-flight background population writes settle.
func (c *Cache) Wait() {
	c.engine.Wait()
}

// Close drains background writes and releases resources.
func (c *Cache) Close() error {
	return c.engine.Close()
}

// BuildKey builds a deterministic cache key from a namespace and parts.
// Parts containing the separator are rejected with ErrInvalidKeyPart.
func BuildKey(namespace string, parts ...string) (string, error) {
	return keys.Build(namespace, parts...)
}

// BuildListKey builds a key for a paginated list query. Filter insertion
// order never affects the key.
func BuildListKey(namespace string, page, pageSize int, filters map[string]any) string {
	return keys.BuildList(namespace, page, pageSize, filters)
}
