package tags

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/hearth/internal/backend"
)

func setupIndex(t *testing.T) (*miniredis.Miniredis, backend.Store, *Index) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	conn := backend.NewConnectionManager(&redis.Options{Addr: mr.Addr()}, zap.NewNop())
	store := backend.NewRedisStore(conn, zap.NewNop())
	require.NoError(t, store.Connect(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return mr, store, NewIndex(store, "hearth", zap.NewNop())
}

func TestIndex_InvalidateRemovesAllMembers(t *testing.T) {
	_, store, index := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k1", []byte("a"), time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, "k2", []byte("b"), time.Minute))
	require.NoError(t, index.Attach(ctx, "k1", "t"))
	require.NoError(t, index.Attach(ctx, "k2", "t"))

	removed, members, err := index.Invalidate(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.ElementsMatch(t, []string{"k1", "k2"}, members)

	for _, key := range []string{"k1", "k2"} {
		found, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	}

	// The member-set record itself is gone too.
	found, err := store.Exists(ctx, index.SetKey("t"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndex_AttachIsIdempotent(t *testing.T) {
	_, store, index := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, index.Attach(ctx, "k", "t"))
	require.NoError(t, index.Attach(ctx, "k", "t"))

	removed, _, err := index.Invalidate(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestIndex_InvalidateToleratesDanglingReferences(t *testing.T) {
	mr, store, index := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, store.SetWithTTL(ctx, "long", []byte("v"), time.Hour))
	require.NoError(t, index.Attach(ctx, "short", "t"))
	require.NoError(t, index.Attach(ctx, "long", "t"))

	// Expiry does not remove keys from tag sets; the set now dangles.
	mr.FastForward(2 * time.Second)

	removed, _, err := index.Invalidate(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestIndex_InvalidateManyDedupesSharedKeys(t *testing.T) {
	_, store, index := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "shared", []byte("v"), time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, "only-a", []byte("v"), time.Minute))
	require.NoError(t, index.Attach(ctx, "shared", "a", "b"))
	require.NoError(t, index.Attach(ctx, "only-a", "a"))

	removed, members, err := index.InvalidateMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Len(t, members, 2)
}

func TestIndex_InvalidateEmptyTag(t *testing.T) {
	_, _, index := setupIndex(t)

	removed, members, err := index.Invalidate(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Empty(t, members)
}

func TestIndex_KeyInMultipleTags(t *testing.T) {
	_, store, index := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, index.Attach(ctx, "k", "a", "b"))

	removed, _, err := index.Invalidate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Tag b still references the now-deleted key; invalidating it is a no-op
	// rather than an error.
	removed, _, err = index.Invalidate(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
