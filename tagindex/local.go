package tagindex

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/tagcache/internal/wire"
	pr "github.com/unkn0wn-root/tagcache/provider"
)

const stripes = 64

// Local stores each index as an ordinary provider entry (a wire index frame)
// and serializes read-modify-write per index key with striped locks. Appends
// are atomic only among writers sharing this Local; separate processes on one
// networked provider can still lose members (use Redis there).
type Local struct {
	p   pr.Provider
	mu  [stripes]sync.Mutex
	now func() time.Time
}

var _ Store = (*Local)(nil)

func NewLocal(p pr.Provider) *Local {
	return &Local{p: p, now: time.Now}
}

func (s *Local) lock(indexKey string) *sync.Mutex {
	return &s.mu[xxhash.Sum64String(indexKey)%stripes]
}

func (s *Local) Add(ctx context.Context, indexKey, member string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	mu := s.lock(indexKey)
	mu.Lock()
	defer mu.Unlock()

	ix, err := s.load(ctx, indexKey)
	if err != nil {
		return err
	}
	if !slices.Contains(ix.Members, member) {
		ix.Members = append(ix.Members, member)
	}

	now := s.now()
	if exp := now.Add(min(ttl, MaxTTL)).UnixNano(); exp > ix.ExpiresAt {
		ix.ExpiresAt = exp
	}

	b, err := wire.EncodeIndex(ix)
	if err != nil {
		return err
	}
	ok, err := s.p.Set(ctx, indexKey, b, int64(len(b)), time.Duration(ix.ExpiresAt-now.UnixNano()))
	if err != nil {
		return err
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

func (s *Local) Members(ctx context.Context, indexKey string) ([]string, error) {
	ix, err := s.load(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	return ix.Members, nil
}

func (s *Local) Remove(ctx context.Context, indexKey string) error {
	mu := s.lock(indexKey)
	mu.Lock()
	defer mu.Unlock()
	return s.p.Del(ctx, indexKey)
}

func (s *Local) Close(context.Context) error { return nil }

// load returns an empty index on miss. A corrupt index is dropped and also
// treated as empty; its members then expire on their own TTLs.
func (s *Local) load(ctx context.Context, indexKey string) (wire.Index, error) {
	raw, ok, err := s.p.Get(ctx, indexKey)
	if err != nil {
		return wire.Index{}, err
	}
	if !ok {
		return wire.Index{}, nil
	}
	ix, err := wire.DecodeIndex(raw)
	if err != nil {
		_ = s.p.Del(ctx, indexKey)
		return wire.Index{}, nil
	}
	return ix, nil
}
