package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/tagcache/internal/wire"
	pr "github.com/unkn0wn-root/tagcache/provider"
)

// Provider stores entries in BigCache. BigCache only knows a global
// LifeWindow, so each value is wrapped in a wire frame carrying its own
// expiry, which Get enforces lazily. LifeWindow acts as an upper bound:
// entries older than it are evicted by BigCache regardless of their TTL.
type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

var (
	_ pr.Provider   = (*Provider)(nil)
	_ pr.Enumerable = (*Provider)(nil)
	_ pr.Named      = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration // 0 => 24h
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Shards             int // power of two; 0 => BigCache default
}

func New(cfg Config) (*Provider, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Name() string { return "bigcache" }

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e, err := wire.DecodeEntry(b)
	if err != nil || e.Key != key {
		_ = p.c.Delete(key) // self-heal
		return nil, false, nil
	}
	if pr.Expired(e.ExpiresAt, p.now()) {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return e.Payload, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, p.del(key)
	}
	b, err := wire.EncodeEntry(wire.Entry{
		Key:       key,
		ExpiresAt: p.now().Add(ttl).UnixNano(),
		Payload:   value,
	})
	if err != nil {
		return false, err
	}
	if err := p.c.Set(key, b); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	return p.del(key)
}

func (p *Provider) del(key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Clear(_ context.Context) error {
	return p.c.Reset()
}

// Range walks BigCache's iterator. Keys are collected first so fn may be slow
// without pinning a shard.
func (p *Provider) Range(ctx context.Context, fn func(key string) bool) error {
	now := p.now()
	var live []string
	it := p.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry evicted mid-iteration
		}
		e, err := wire.DecodeEntryHeader(info.Value())
		if err != nil || e.Key != info.Key() || pr.Expired(e.ExpiresAt, now) {
			continue
		}
		live = append(live, info.Key())
	}
	for _, k := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k) {
			return nil
		}
	}
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
