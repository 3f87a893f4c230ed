// Package memory is an in-process provider backed by a plain map.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

type entry struct {
	v   []byte
	exp int64 // unix nanos
}

type Memory struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

var (
	_ pr.Provider   = (*Memory)(nil)
	_ pr.Enumerable = (*Memory)(nil)
	_ pr.Named      = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

func (p *Memory) Name() string { return "memory" }

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if pr.Expired(e.exp, p.now()) {
		p.dropExpired(key)
		return nil, false, nil
	}
	return bytes.Clone(e.v), true, nil
}

// dropExpired deletes key only if it is still expired; a concurrent Set may
// have replaced it between the read and the write lock.
func (p *Memory) dropExpired(key string) {
	p.mu.Lock()
	if e, ok := p.m[key]; ok && pr.Expired(e.exp, p.now()) {
		delete(p.m, key)
	}
	p.mu.Unlock()
}

func (p *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ttl <= 0 {
		delete(p.m, key)
		return true, nil
	}
	p.m[key] = entry{v: bytes.Clone(value), exp: p.now().Add(ttl).UnixNano()}
	return true, nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Memory) Clear(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]entry)
	p.mu.Unlock()
	return nil
}

// Range snapshots live keys first so fn runs without the lock held.
func (p *Memory) Range(ctx context.Context, fn func(key string) bool) error {
	now := p.now()
	p.mu.RLock()
	live := make([]string, 0, len(p.m))
	for k, e := range p.m {
		if !pr.Expired(e.exp, now) {
			live = append(live, k)
		}
	}
	p.mu.RUnlock()

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

// Len counts stored entries, expired ones included.
func (p *Memory) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Memory) Close(_ context.Context) error { return nil }
