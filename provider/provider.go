// Package provider defines the storage abstraction used by tagcache.
//
// Implementations are byte stores with per-entry TTL. They know nothing about
// namespaces or tags: the service prefixes every key before it reaches the
// provider, and tag indices are stored as ordinary entries.
//
// Expiry is lazy. A Get (or Exists) that finds an expired entry deletes it and
// reports a miss. No provider in this module runs its own sweeper.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use
// and byte-for-byte transparent: Get returns exactly the []byte previously
// passed to Set for the same key.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// Expired, missing and undecodable entries are misses.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with expiry now+ttl, overwriting any existing entry.
	// ttl <= 0 expires immediately: any existing entry is removed and nothing
	// is stored. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. A missing key is not an error.
	Del(ctx context.Context, key string) error

	// Exists reports presence without handing the value back.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes every entry this provider owns, regardless of namespace.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Enumerable is implemented by providers that can list their live keys.
// Pattern invalidation needs it; providers without it are rejected with
// ErrUnsupported by the service.
type Enumerable interface {
	// Range calls fn for every live raw key until fn returns false.
	// fn must not call back into the provider.
	Range(ctx context.Context, fn func(key string) bool) error
}

// Named lets a provider report an identifier for statistics.
type Named interface {
	Name() string
}

// Expired reports whether an absolute unix-nano expiry has passed.
func Expired(expiresAt int64, now time.Time) bool {
	return now.UnixNano() >= expiresAt
}
