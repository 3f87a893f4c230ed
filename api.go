package tagcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/tagindex"
)

const (
	defaultTTL = time.Hour
	// ForeverTTL is what Forever stores with: long enough not to expire in
	// practice, still finite so a lost tag index entry ages out eventually.
	ForeverTTL = 365 * 24 * time.Hour
	// MaxTTL caps every entry and tag index lifetime so now+ttl and the
	// doubled index TTL stay inside int64 nanoseconds.
	MaxTTL = tagindex.MaxTTL
)

// SetCostFunc sizes a write for providers with cost-based admission.
type SetCostFunc func(storageKey string, value []byte) int64

// Options configure a Service. Only Prefix and Provider are required.
type Options struct {
	// Required
	Prefix   string // logical namespace; keys are stored as "<prefix>:<key>"
	Provider pr.Provider

	Logger         Logger         // if nil, NopLogger is used
	Hooks          Hooks          // if nil, NopHooks is used
	DefaultTTL     time.Duration  // ttl==0 on writes; 0 => 1h
	Disabled       bool           // default false (enabled)
	TagIndex       tagindex.Store // nil => tagindex.NewLocal(Provider)
	SingleFlight   bool           // coalesce concurrent Remember calls per key in-process
	ComputeSetCost SetCostFunc    // default len(value)
}

// Store is the byte-level surface shared by *Service and *TaggedCache.
// Typed views wrap either one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool

	service() *Service
	storageKey(key string) string
}

func New(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("tagcache: provider is required")
	}
	if opts.Prefix == "" {
		return nil, fmt.Errorf("tagcache: prefix is required")
	}

	s := &Service{
		prefix:   opts.Prefix,
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}

	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	if opts.TagIndex != nil {
		s.index = opts.TagIndex
	} else {
		s.index = tagindex.NewLocal(opts.Provider)
	}

	if opts.ComputeSetCost != nil {
		s.setCost = opts.ComputeSetCost
	} else {
		s.setCost = func(_ string, v []byte) int64 { return int64(len(v)) + 1 }
	}
	if opts.SingleFlight {
		s.flight = new(singleflight.Group)
	}
	return s, nil
}
