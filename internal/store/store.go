// Package store implements the central cache engine: the get/set/invalidate
// API, cache-aside orchestration, TTL management, and statistics wiring.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/hearth/internal/backend"
	"goflare.io/hearth/internal/config"
	"goflare.io/hearth/internal/local"
	"goflare.io/hearth/internal/models"
	"goflare.io/hearth/internal/stats"
	"goflare.io/hearth/internal/tags"
	"goflare.io/hearth/pkg/serialization"
)

// Options carries per-write settings.
type Options struct {
	// TTL overrides the configured default when positive.
	TTL time.Duration
	// Tags to attach the key to for group invalidation.
	Tags []string
}

// Fetcher computes a value on a cache miss. Potentially slow; invoked only
// when the cache cannot answer.
type Fetcher func(ctx context.Context) (any, error)

// Store is the cache engine. Construct one per process and inject it into
// consumers; lifecycle (construct on startup, Close on shutdown) belongs to
// the owning process.
type Store struct {
	cfg        *config.Config
	remote     *Resilient
	serializer *serialization.Serializer
	tagIndex   *tags.Index
	collector  *stats.Collector
	localTier  *local.Tier     // nil unless the hot tier is enabled
	filter     *negativeFilter // nil unless the negative filter is enabled
	sf         *singleflight.Group

	tracer trace.Tracer
	logger *zap.Logger
	closed *atomic.Bool

	// populating tracks background cache-population goroutines so Close can
	// drain them.
	populating sync.WaitGroup
}

// New wires the engine from config and a raw backend.
func New(cfg *config.Config, raw backend.Store, logger *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := serialization.NewCodec(cfg.Serialization.Type)
	if err != nil {
		return nil, err
	}

	remote, err := NewResilient(raw, cfg.Resilience, cfg.OpTimeout)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:        cfg,
		remote:     remote,
		serializer: serialization.NewSerializer(codec, cfg.CompressionThreshold),
		tagIndex:   tags.NewIndex(remote, cfg.Namespace, logger),
		collector:  stats.NewCollector(remote),
		tracer:     otel.Tracer("hearth"),
		logger:     logger,
		closed:     atomic.NewBool(false),
	}

	if cfg.EnableLocalCache {
		tier, err := local.New(cfg.MaxLocalSize, cfg.DefaultTTL, logger)
		if err != nil {
			return nil, err
		}
		s.localTier = tier
	}
	if cfg.NegativeFilter {
		s.filter = newNegativeFilter(cfg.NegativeFilterItems, cfg.NegativeFilterFailRate)
	}
	if cfg.EnableSingleFlight {
		s.sf = &singleflight.Group{}
	}

	return s, nil
}

// fullKey prefixes a caller key with the configured namespace.
func (s *Store) fullKey(key string) string {
	return s.cfg.Namespace + ":" + key
}

func (s *Store) ttlOf(opts Options) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return s.cfg.DefaultTTL
}

// Get decodes the value under key into dest. Absence is a normal outcome,
// not an error: misses, timeouts, store failures, and undecodable entries
// all degrade to found=false so that caching never makes a read path less
// available than not caching.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "Store.Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if s.closed.Load() {
		return false, ErrClosed
	}

	fullKey := s.fullKey(key)

	if s.filter != nil && !s.filter.Test(fullKey) {
		s.collector.Miss()
		return false, nil
	}

	if s.localTier != nil {
		if entry, found := s.localTier.Get(fullKey); found {
			if err := s.serializer.Decode(entry.Data, dest); err == nil {
				s.collector.Hit()
				return true, nil
			}
			// Undecodable local copy; drop it and fall through to the store.
			s.localTier.Delete(fullKey)
		}
	}

	data, found, err := s.remote.Get(ctx, fullKey)
	if err != nil {
		s.logger.Warn("Cache read failed, degrading to miss", zap.String("key", key), zap.Error(err))
		s.collector.Miss()
		return false, nil
	}
	if !found {
		s.collector.Miss()
		return false, nil
	}

	if err := s.serializer.Decode(data, dest); err != nil {
		s.logger.Error("Corrupt cache entry treated as miss", zap.String("key", key), zap.Error(err))
		s.collector.Miss()
		return false, nil
	}

	if s.localTier != nil {
		s.localTier.Set(fullKey, models.NewEntry(data, time.Now().Add(s.cfg.DefaultTTL)))
	}

	s.collector.Hit()
	return true, nil
}

// Set encodes value and writes it under key with the TTL and tags from opts.
// Caller-initiated writes surface their errors; silent failures here would
// turn into stale-data bugs.
func (s *Store) Set(ctx context.Context, key string, value any, opts Options) error {
	ctx, span := s.tracer.Start(ctx, "Store.Set", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if s.closed.Load() {
		return ErrClosed
	}

	data, err := s.serializer.Encode(value)
	if err != nil {
		return err
	}

	return s.write(ctx, s.fullKey(key), data, opts)
}

// write stores encoded bytes and registers tags. Shared by Set and the
// background population path.
func (s *Store) write(ctx context.Context, fullKey string, data []byte, opts Options) error {
	ttl := s.ttlOf(opts)

	if err := s.remote.SetWithTTL(ctx, fullKey, data, ttl); err != nil {
		return err
	}

	if s.localTier != nil {
		s.localTier.Set(fullKey, models.NewEntry(data, time.Now().Add(ttl)))
	}
	if s.filter != nil {
		s.filter.Add(fullKey)
	}

	if len(opts.Tags) > 0 {
		if err := s.tagIndex.Attach(ctx, fullKey, opts.Tags...); err != nil {
			return fmt.Errorf("failed to attach tags: %w", err)
		}
	}
	return nil
}

// GetOrCompute is the cache-aside primitive. On a hit it decodes the cached
// value into dest without invoking fetcher. On a miss it invokes fetcher,
// hands the result to the caller immediately, and populates the cache from a
// detached goroutine whose failure is only logged — population never delays
// or fails the read.
//
// Concurrent calls for the same cold key are not deduplicated unless the
// single-flight option is enabled; redundant fetches on a stampede are an
// accepted outcome of the base design.
func (s *Store) GetOrCompute(ctx context.Context, key string, dest any, fetcher Fetcher, opts Options) error {
	ctx, span := s.tracer.Start(ctx, "Store.GetOrCompute", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if s.closed.Load() {
		return ErrClosed
	}

	if found, err := s.Get(ctx, key, dest); err != nil {
		return err
	} else if found {
		return nil
	}

	compute := func() (any, error) {
		value, err := fetcher(ctx)
		if err != nil {
			return nil, err
		}
		return s.serializer.Encode(value)
	}

	var data []byte
	if s.sf != nil {
		v, err, _ := s.sf.Do(key, compute)
		if err != nil {
			return err
		}
		data = v.([]byte)
	} else {
		v, err := compute()
		if err != nil {
			return err
		}
		data = v.([]byte)
	}

	s.populating.Add(1)
	go func() {
		defer s.populating.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
		defer cancel()
		if err := s.write(ctx, s.fullKey(key), data, opts); err != nil {
			s.logger.Warn("Background cache population failed", zap.String("key", key), zap.Error(err))
		}
	}()

	// Decode the encoded form rather than handing back the fetcher's value
	// directly, so the first read and every later hit observe the identical
	// canonical representation.
	return s.serializer.Decode(data, dest)
}

// Delete removes key from every tier.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.DeleteMany(ctx, []string{key})
	return err
}

// DeleteMany removes the given keys, returning how many existed.
func (s *Store) DeleteMany(ctx context.Context, keys []string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Store.DeleteMany", trace.WithAttributes(attribute.Int("keyCount", len(keys))))
	defer span.End()

	if s.closed.Load() {
		return 0, ErrClosed
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.fullKey(key)
	}

	removed, err := s.remote.Delete(ctx, fullKeys...)
	if err != nil {
		return 0, err
	}

	if s.localTier != nil {
		for _, fullKey := range fullKeys {
			s.localTier.Delete(fullKey)
		}
	}
	return removed, nil
}

// globEscaper neutralizes Redis MATCH metacharacters so a prefix is always
// matched literally.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// DeleteByPrefix removes every key under the namespace matching the prefix.
// Scans the keyspace; expensive on large stores, keep off hot paths.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Store.DeleteByPrefix", trace.WithAttributes(attribute.String("prefix", prefix)))
	defer span.End()

	if s.closed.Load() {
		return 0, ErrClosed
	}

	fullPrefix := s.fullKey(prefix)
	keys, err := s.remote.KeysMatching(ctx, escapeGlob(fullPrefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.remote.Delete(ctx, keys...)
	if err != nil {
		return 0, err
	}

	if s.localTier != nil {
		s.localTier.DeleteByPrefix(fullPrefix)
	}
	return removed, nil
}

// InvalidateTag deletes every entry attached to tag. Returns the number of
// keys actually removed.
func (s *Store) InvalidateTag(ctx context.Context, tag string) (int64, error) {
	return s.InvalidateTags(ctx, []string{tag})
}

// InvalidateTags deletes every entry attached to any of the tags, counting
// keys shared between tags once.
func (s *Store) InvalidateTags(ctx context.Context, tagList []string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Store.InvalidateTags", trace.WithAttributes(attribute.Int("tagCount", len(tagList))))
	defer span.End()

	if s.closed.Load() {
		return 0, ErrClosed
	}

	removed, members, err := s.tagIndex.InvalidateMany(ctx, tagList)
	if err != nil {
		return 0, err
	}

	if s.localTier != nil {
		for _, member := range members {
			s.localTier.Delete(member)
		}
	}
	return removed, nil
}

// Increment atomically adds by to the counter under key and returns the new
// value. Atomicity is the backing store's; concurrent increments from any
// process serialize there.
func (s *Store) Increment(ctx context.Context, key string, by int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Store.Increment", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.remote.IncrBy(ctx, s.fullKey(key), by)
}

// Expire resets the TTL of an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.remote.Expire(ctx, s.fullKey(key), ttl)
}

// Has reports whether key is present without decoding it.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return s.remote.Exists(ctx, s.fullKey(key))
}

// Flush removes every key in the store and resets statistics. Administrative
// operation: connection errors surface instead of degrading.
func (s *Store) Flush(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Store.Flush")
	defer span.End()

	if s.closed.Load() {
		return ErrClosed
	}

	if err := s.remote.FlushAll(ctx); err != nil {
		return err
	}

	if s.localTier != nil {
		s.localTier.Flush()
	}
	if s.filter != nil {
		s.filter.Reset()
	}
	s.collector.Reset()
	return nil
}

// Stats returns a snapshot of hit/miss counters and live store figures.
func (s *Store) Stats(ctx context.Context) (stats.Snapshot, error) {
	return s.collector.Snapshot(ctx)
}

// Healthy reports the backing-store connection state.
func (s *Store) Healthy() bool {
	return s.remote.IsConnected()
}

// Wait blocks until in-flight background population writes settle. Useful
// before shutdown and in tests that assert on population effects.
func (s *Store) Wait() {
	s.populating.Wait()
}

// Close drains background writes and releases every tier.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.populating.Wait()
	if s.localTier != nil {
		s.localTier.Close()
	}
	return s.remote.Close()
}
