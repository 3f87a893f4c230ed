package tagcache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
)

// Typed is a codec-backed view over a Service or a TaggedCache.
// It shares the store's namespace, tags and counters.
type Typed[V any] struct {
	st    Store
	codec codec.Codec[V]
}

func NewTyped[V any](st Store, c codec.Codec[V]) *Typed[V] {
	return &Typed[V]{st: st, codec: c}
}

func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return get(ctx, t.st, t.codec, key)
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	b, err := t.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("tagcache: encode %q: %w", key, err)
	}
	return t.st.Set(ctx, key, b, ttl)
}

func (t *Typed[V]) Forever(ctx context.Context, key string, value V) error {
	return t.Set(ctx, key, value, ForeverTTL)
}

func (t *Typed[V]) Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	return remember(ctx, t.st, t.codec, key, ttl, fn)
}

func (t *Typed[V]) Delete(ctx context.Context, key string) error { return t.st.Delete(ctx, key) }
func (t *Typed[V]) Exists(ctx context.Context, key string) bool  { return t.st.Exists(ctx, key) }
