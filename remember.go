package tagcache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
)

var bytesCodec codec.Codec[[]byte] = codec.Bytes{}

// get is the single read path. Hits and misses are counted only after the
// payload decodes, so a self-healed entry is one miss, not a hit.
func get[V any](ctx context.Context, st Store, c codec.Codec[V], key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, ErrInvalidKey
	}
	s := st.service()
	if !s.enabled {
		return zero, false, nil
	}

	sk := st.storageKey(key)
	raw, ok := s.fetch(ctx, sk)
	if !ok {
		s.stats.misses.Add(1)
		return zero, false, nil
	}
	v, err := c.Decode(raw)
	if err != nil {
		_ = s.provider.Del(ctx, sk) // self-heal
		s.hooks.SelfHeal(sk, "decode")
		s.log.Debug("dropped undecodable entry", Fields{"key": sk, "err": err})
		s.stats.misses.Add(1)
		return zero, false, nil
	}
	s.stats.hits.Add(1)
	return v, true, nil
}

func remember[V any](ctx context.Context, st Store, c codec.Codec[V], key string, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	if fn == nil {
		return zero, ErrNilCompute
	}
	if key == "" {
		return zero, ErrInvalidKey
	}
	s := st.service()
	if !s.enabled {
		return fn(ctx)
	}

	if v, ok, err := get(ctx, st, c, key); err != nil {
		return zero, err
	} else if ok {
		return v, nil
	}

	compute := func() (V, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		b, err := c.Encode(v)
		if err != nil {
			s.log.Warn("remember: encode failed; value not cached", Fields{"key": key, "err": err})
			return v, nil
		}
		if err := st.Set(ctx, key, b, ttl); err != nil {
			s.log.Warn("remember: store failed; returning computed value", Fields{"key": key, "err": err})
		}
		return v, nil
	}
	if s.flight == nil {
		return compute()
	}

	// Followers share the leader's result, computed under the leader's ctx.
	// Callers decoding into different types never share a flight.
	r, err, _ := s.flight.Do(flightKey[V](st.storageKey(key)), func() (any, error) {
		return compute()
	})
	if err != nil {
		return zero, err
	}
	if r == nil {
		return zero, nil
	}
	v, ok := r.(V)
	if !ok {
		return zero, fmt.Errorf("tagcache: remember %q: shared result is %T", key, r)
	}
	return v, nil
}

func flightKey[V any](storageKey string) string {
	return fmt.Sprintf("%s\x00%T", storageKey, (*V)(nil))
}
