// Package tags maintains a reverse index from logical tag to member cache
// keys, persisted in the backing store, so that every entry tagged X can be
// invalidated without scanning the keyspace.
//
// Membership is independent of TTL: keys that expire stay in their tag sets
// until the tag is invalidated, and invalidation tolerates those dangling
// references (deleting an absent key is a no-op). Attach racing a concurrent
// Invalidate is not linearizable; a key attached "just after" invalidation
// may survive one extra cycle. That staleness is accepted by design.
package tags

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/hearth/internal/backend"
)

const setKeyPrefix = "tag"

// Index is the tag → member-keys reverse index.
type Index struct {
	store     backend.Store
	namespace string
	logger    *zap.Logger
}

// NewIndex creates an Index persisting its sets under the given namespace.
func NewIndex(store backend.Store, namespace string, logger *zap.Logger) *Index {
	return &Index{
		store:     store,
		namespace: namespace,
		logger:    logger,
	}
}

// SetKey returns the backing-store key holding a tag's member set.
func (i *Index) SetKey(tag string) string {
	return i.namespace + ":" + setKeyPrefix + ":" + tag
}

// Attach adds key to each tag's member set. Idempotent: attaching a key that
// is already a member has no effect.
func (i *Index) Attach(ctx context.Context, key string, tags ...string) error {
	for _, tag := range tags {
		if err := i.store.AddMember(ctx, i.SetKey(tag), key); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate deletes every key in the tag's member set from the backing
// store, then deletes the member-set record itself. Returns the number of
// keys actually removed, which may be less than the set size when members
// have already expired, plus the member keys themselves so callers can purge
// other tiers.
func (i *Index) Invalidate(ctx context.Context, tag string) (int64, []string, error) {
	return i.InvalidateMany(ctx, []string{tag})
}

// InvalidateMany invalidates several tags at once. A key belonging to more
// than one of the tags is deleted, and counted, exactly once.
func (i *Index) InvalidateMany(ctx context.Context, tagList []string) (int64, []string, error) {
	seen := make(map[string]struct{})
	var members []string
	setKeys := make([]string, 0, len(tagList))

	for _, tag := range tagList {
		setKey := i.SetKey(tag)
		setKeys = append(setKeys, setKey)

		keys, err := i.store.MembersOf(ctx, setKey)
		if err != nil {
			return 0, nil, err
		}
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			members = append(members, key)
		}
	}

	removed, err := i.store.Delete(ctx, members...)
	if err != nil {
		return 0, nil, err
	}

	if _, err := i.store.Delete(ctx, setKeys...); err != nil {
		// Members are already gone; a surviving empty set record only costs
		// a little memory until the tag is invalidated again.
		i.logger.Warn("Failed to delete tag set records", zap.Strings("tags", tagList), zap.Error(err))
	}

	return removed, members, nil
}
