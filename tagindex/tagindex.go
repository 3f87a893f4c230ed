// Package tagindex holds the secondary index behind tagged cache views:
// for each tag, the set of storage keys written through it.
//
// Appends must be atomic per index key. A plain get-append-set over a shared
// store loses members when two writers race on one tag, so each Store
// provides its own arbitration: Local serializes appends per tag inside the
// process, Redis uses native sets and is atomic across processes.
package tagindex

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned when the backing store refuses an index write.
var ErrRejected = errors.New("tagindex: index write rejected by provider")

// MaxTTL bounds index lifetimes; longer ttls are capped so absolute expiries
// stay representable as unix nanoseconds.
const MaxTTL = 100 * 365 * 24 * time.Hour

// ErrInvalidTTL is returned by Add for a non-positive ttl, which would
// delete the index instead of extending it.
var ErrInvalidTTL = errors.New("tagindex: ttl must be positive")

// Store abstracts where tag indices live.
type Store interface {
	// Add appends member to the index at indexKey (deduplicated) and extends
	// the index expiry to at least now+ttl. Expiry is never shortened.
	Add(ctx context.Context, indexKey, member string, ttl time.Duration) error
	// Members returns the indexed keys; a missing index yields none.
	Members(ctx context.Context, indexKey string) ([]string, error)
	// Remove deletes the index itself (not its members).
	Remove(ctx context.Context, indexKey string) error
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
