package tagcache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/keys"
)

// TaggedCache is a view bound to a fixed, normalized tag set. Keys written
// through it are qualified by the tag set, so the same logical key under a
// different tag set is a different entry. Every write is recorded in each
// tag's index; Flush deletes everything an index lists.
type TaggedCache struct {
	s    *Service
	tags []string
}

var _ Store = (*TaggedCache)(nil)

// Tags returns a view bound to tags. Order and duplicates do not matter.
// An empty set or a blank tag is rejected with ErrInvalidTag.
func (s *Service) Tags(tags ...string) (*TaggedCache, error) {
	norm := keys.NormalizeTags(tags)
	if len(norm) == 0 {
		return nil, ErrInvalidTag
	}
	for _, t := range norm {
		if t == "" {
			return nil, ErrInvalidTag
		}
	}
	return &TaggedCache{s: s, tags: norm}, nil
}

// Tags returns the normalized tag set (sorted, deduplicated).
func (t *TaggedCache) Tags() []string { return slices.Clone(t.tags) }

func (t *TaggedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return get(ctx, t, bytesCodec, key)
}

// Set records the entry in every tag index, then writes it. If an index
// append fails the entry is not written: an unindexed entry could not be
// flushed.
func (t *TaggedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	s := t.s
	if !s.enabled {
		return nil
	}
	ttl = s.ttl(ttl)
	sk := t.storageKey(key)
	if ttl > 0 {
		for _, tag := range t.tags {
			// index outlives its members so it is still there to flush them
			if err := s.index.Add(ctx, t.indexKey(tag), sk, indexTTL(ttl)); err != nil {
				s.hooks.TagIndexError(tag, err)
				return fmt.Errorf("tagcache: index tag %q: %w", tag, err)
			}
		}
	}
	return s.write(ctx, sk, value, ttl)
}

func (t *TaggedCache) Forever(ctx context.Context, key string, value []byte) error {
	return t.Set(ctx, key, value, ForeverTTL)
}

func (t *TaggedCache) Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	return remember(ctx, t, bytesCodec, key, ttl, fn)
}

// Delete removes one tag-qualified entry. Index membership is left as is;
// flushing a key that is already gone is a no-op.
func (t *TaggedCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !t.s.enabled {
		return nil
	}
	return t.s.del(ctx, t.storageKey(key))
}

func (t *TaggedCache) Exists(ctx context.Context, key string) bool {
	if key == "" || !t.s.enabled {
		return false
	}
	sk := t.storageKey(key)
	ok, err := t.s.provider.Exists(ctx, sk)
	if err != nil {
		t.s.hooks.ProviderError("exists", sk, err)
		return false
	}
	return ok
}

// Flush deletes every entry listed under any of the view's tags, then the
// tag indices themselves. Entries written under other tag sets that share a
// tag are deleted too. Flushing twice is harmless.
func (t *TaggedCache) Flush(ctx context.Context) error {
	s := t.s
	if !s.enabled {
		return nil
	}

	fe := &FlushError{}
	for _, tag := range t.tags {
		ik := t.indexKey(tag)
		members, err := s.index.Members(ctx, ik)
		if err != nil {
			s.hooks.TagIndexError(tag, err)
			fe.add(tag, ik, err)
			continue
		}

		failed := 0
		for _, m := range members {
			if err := s.provider.Del(ctx, m); err != nil {
				s.hooks.ProviderError("del", m, err)
				fe.add(tag, m, err)
				failed++
			}
		}
		if failed > 0 {
			// keep the index so a retry can finish
			s.hooks.FlushIncomplete(tag, failed)
			s.log.Warn("tag flush incomplete", Fields{"tag": tag, "failed": failed, "members": len(members)})
			continue
		}

		if err := s.index.Remove(ctx, ik); err != nil {
			s.hooks.TagIndexError(tag, err)
			fe.add(tag, ik, err)
			continue
		}
		s.log.Debug("tag flushed", Fields{"tag": tag, "members": len(members)})
	}
	return fe.orNil()
}

func (t *TaggedCache) service() *Service { return t.s }

// indexTTL doubles an entry TTL without overflowing.
func indexTTL(ttl time.Duration) time.Duration {
	if ttl > MaxTTL/2 {
		return MaxTTL
	}
	return 2 * ttl
}

func (t *TaggedCache) storageKey(key string) string {
	return t.s.storageKey(keys.Tagged(key, t.tags))
}

func (t *TaggedCache) indexKey(tag string) string {
	return t.s.storageKey("tag:" + tag)
}
