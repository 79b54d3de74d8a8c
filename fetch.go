package hearth

import "context"

// Lookup retrieves the value under key as T. The caller states the expected
// type at the call site; the serializer enforces the concrete decode.
func Lookup[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var value T
	found, err := c.Get(ctx, key, &value)
	return value, found, err
}

// Fetch is the typed cache-aside primitive: return the cached T under key,
// or compute it with fetcher on a miss and populate the cache in the
// background. The returned value is the canonical (re-decoded) form, so the
// first read and every later hit observe identical data.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetcher func(context.Context) (T, error), opts Options) (T, error) {
	var value T
	err := c.GetOrCompute(ctx, key, &value, func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	}, opts)
	return value, err
}
