package tagcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/tagindex"
)

// Service is the cache facade: a namespace over one provider, with hit/miss
// accounting, get-or-compute and invalidation helpers.
// Safe for concurrent use.
type Service struct {
	prefix     string
	provider   pr.Provider
	index      tagindex.Store
	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
	setCost    SetCostFunc
	flight     *singleflight.Group

	stats     counters
	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*Service)(nil)

func (s *Service) Enabled() bool  { return s.enabled }
func (s *Service) Prefix() string { return s.prefix }

// Get returns the value stored under key. A missing, expired or unreadable
// entry is a miss: (nil, false, nil).
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return get(ctx, s, bytesCodec, key)
}

// Set stores value under key. ttl==0 uses the default TTL; a negative ttl
// expires the entry immediately.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !s.enabled {
		return nil
	}
	return s.write(ctx, s.storageKey(key), value, ttl)
}

// Forever stores value with ForeverTTL.
func (s *Service) Forever(ctx context.Context, key string, value []byte) error {
	return s.Set(ctx, key, value, ForeverTTL)
}

// Remember returns the cached value for key or, on a miss, computes it with
// fn and stores the result. Errors from fn are returned as-is and nothing is
// cached. A failed store is logged; the computed value is still returned.
func (s *Service) Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	return remember(ctx, s, bytesCodec, key, ttl, fn)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !s.enabled {
		return nil
	}
	return s.del(ctx, s.storageKey(key))
}

// Exists reports whether a live entry is stored under key. Always false
// while disabled. Provider errors count as absent.
func (s *Service) Exists(ctx context.Context, key string) bool {
	if key == "" || !s.enabled {
		return false
	}
	sk := s.storageKey(key)
	ok, err := s.provider.Exists(ctx, sk)
	if err != nil {
		s.hooks.ProviderError("exists", sk, err)
		s.log.Warn("exists failed; reporting absent", Fields{"key": sk, "err": err})
		return false
	}
	return ok
}

// Clear drops every entry in the underlying provider, including entries of
// other services sharing it.
func (s *Service) Clear(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	if err := s.provider.Clear(ctx); err != nil {
		s.hooks.ProviderError("clear", "", err)
		return fmt.Errorf("tagcache: clear: %w", err)
	}
	s.log.Info("cache cleared", Fields{"prefix": s.prefix})
	return nil
}

// Close releases the tag index and the provider. Subsequent calls return the
// first result.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		// index first (best effort); the local index shares the provider
		if err := s.index.Close(ctx); err != nil {
			s.log.Warn("tag index close failed", Fields{"err": err})
		}
		s.closeErr = s.provider.Close(ctx)
	})
	return s.closeErr
}

func (s *Service) service() *Service { return s }

func (s *Service) storageKey(key string) string {
	return s.prefix + ":" + key
}

func (s *Service) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	return min(ttl, MaxTTL)
}

// fetch reads raw bytes without touching the counters. IO errors degrade to
// a miss.
func (s *Service) fetch(ctx context.Context, storageKey string) ([]byte, bool) {
	raw, ok, err := s.provider.Get(ctx, storageKey)
	if err != nil {
		s.hooks.ProviderError("get", storageKey, err)
		s.log.Warn("provider get failed; treating as miss", Fields{"key": storageKey, "err": err})
		return nil, false
	}
	return raw, ok
}

func (s *Service) write(ctx context.Context, storageKey string, value []byte, ttl time.Duration) error {
	ttl = s.ttl(ttl)
	s.stats.sets.Add(1)
	ok, err := s.provider.Set(ctx, storageKey, value, s.setCost(storageKey, value), ttl)
	if err != nil {
		s.hooks.ProviderError("set", storageKey, err)
		return fmt.Errorf("tagcache: set %q: %w", storageKey, err)
	}
	if !ok {
		s.hooks.ProviderSetRejected(storageKey)
		s.log.Debug("set rejected by provider (pressure)", Fields{"key": storageKey})
	}
	return nil
}

func (s *Service) del(ctx context.Context, storageKey string) error {
	if err := s.provider.Del(ctx, storageKey); err != nil {
		s.hooks.ProviderError("del", storageKey, err)
		return fmt.Errorf("tagcache: delete %q: %w", storageKey, err)
	}
	return nil
}
