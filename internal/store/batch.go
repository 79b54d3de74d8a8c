package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// GetMany retrieves the decodable subset of keys. Keys that are absent,
// unreadable, or undecodable are simply left out of the result; each lookup
// records a hit or miss like a single Get.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "Store.GetMany", trace.WithAttributes(attribute.Int("keyCount", len(keys))))
	defer span.End()

	if s.closed.Load() {
		return nil, ErrClosed
	}

	result := make(map[string]any, len(keys))
	for _, key := range keys {
		var value any
		found, err := s.Get(ctx, key, &value)
		if err != nil {
			return result, err
		}
		if found {
			result[key] = value
		}
	}
	return result, nil
}

// SetMany writes every item with shared options. Fails on the first write
// error; earlier writes stay in place.
func (s *Store) SetMany(ctx context.Context, items map[string]any, opts Options) error {
	ctx, span := s.tracer.Start(ctx, "Store.SetMany", trace.WithAttributes(attribute.Int("itemCount", len(items))))
	defer span.End()

	if s.closed.Load() {
		return ErrClosed
	}

	for key, value := range items {
		if err := s.Set(ctx, key, value, opts); err != nil {
			s.logger.Warn("SetMany aborted", zap.String("key", key), zap.Error(err))
			return err
		}
	}
	return nil
}
