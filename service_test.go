package tagcache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/memory"
)

// faultyProvider wraps a provider and fails selected operations.
type faultyProvider struct {
	pr.Provider
	mu       sync.Mutex
	failGet  bool
	failSet  bool
	failDel  map[string]bool
	rejected bool
}

var errBoom = errors.New("boom")

func (p *faultyProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	fail := p.failGet
	p.mu.Unlock()
	if fail {
		return nil, false, errBoom
	}
	return p.Provider.Get(ctx, key)
}

func (p *faultyProvider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	fail, rej := p.failSet, p.rejected
	p.mu.Unlock()
	if fail {
		return false, errBoom
	}
	if rej {
		return false, nil
	}
	return p.Provider.Set(ctx, key, value, cost, ttl)
}

func (p *faultyProvider) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	fail := p.failDel[key]
	p.mu.Unlock()
	if fail {
		return errBoom
	}
	return p.Provider.Del(ctx, key)
}

type recHooks struct {
	NopHooks
	mu       sync.Mutex
	selfHeal []string
	provErr  []string
	rejected []string
	tagErr   []string
	flushInc map[string]int
	pattern  []string
}

func (h *recHooks) SelfHeal(k, _ string) { h.mu.Lock(); h.selfHeal = append(h.selfHeal, k); h.mu.Unlock() }
func (h *recHooks) ProviderError(op, _ string, _ error) {
	h.mu.Lock()
	h.provErr = append(h.provErr, op)
	h.mu.Unlock()
}
func (h *recHooks) ProviderSetRejected(k string) {
	h.mu.Lock()
	h.rejected = append(h.rejected, k)
	h.mu.Unlock()
}
func (h *recHooks) TagIndexError(tag string, _ error) {
	h.mu.Lock()
	h.tagErr = append(h.tagErr, tag)
	h.mu.Unlock()
}
func (h *recHooks) FlushIncomplete(tag string, n int) {
	h.mu.Lock()
	if h.flushInc == nil {
		h.flushInc = map[string]int{}
	}
	h.flushInc[tag] += n
	h.mu.Unlock()
}
func (h *recHooks) PatternUnsupported(p string) {
	h.mu.Lock()
	h.pattern = append(h.pattern, p)
	h.mu.Unlock()
}

func newTestService(t *testing.T, p pr.Provider, mod func(*Options)) *Service {
	t.Helper()
	if p == nil {
		p = memory.New()
	}
	opts := Options{Prefix: "app", Provider: p}
	if mod != nil {
		mod(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Prefix: "app"}); err == nil || !strings.Contains(err.Error(), "provider is required") {
		t.Fatalf("want provider error, got %v", err)
	}
	if _, err := New(Options{Provider: memory.New()}); err == nil || !strings.Contains(err.Error(), "prefix is required") {
		t.Fatalf("want prefix error, got %v", err)
	}
}

func TestRoundTripAndStorageKey(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestService(t, mp, nil)

	if err := s.Set(ctx, "user:5", []byte(`{"name":"Ana"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, ok, err := mp.Get(ctx, "app:user:5")
	if err != nil || !ok || string(raw) != `{"name":"Ana"}` {
		t.Fatalf("provider key app:user:5: ok=%v err=%v raw=%q", ok, err, raw)
	}
	got, ok, err := s.Get(ctx, "user:5")
	if err != nil || !ok || !bytes.Equal(got, raw) {
		t.Fatalf("Get: ok=%v err=%v got=%q", ok, err, got)
	}
	if !s.Exists(ctx, "user:5") {
		t.Fatalf("Exists should be true")
	}
	if err := s.Delete(ctx, "user:5"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "user:5"); ok {
		t.Fatalf("expected miss after Delete")
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	if err := s.Set(ctx, "", []byte("x"), 0); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Set: want ErrInvalidKey, got %v", err)
	}
	if _, _, err := s.Get(ctx, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Get: want ErrInvalidKey, got %v", err)
	}
	if err := s.Delete(ctx, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Delete: want ErrInvalidKey, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	if err := s.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if s.Exists(ctx, "k") {
		t.Fatalf("Exists should be false after expiry")
	}
}

func TestNegativeTTLExpiresImmediately(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if err := s.Set(ctx, "k", []byte("v2"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.Exists(ctx, "k") {
		t.Fatalf("negative ttl should leave nothing stored")
	}
}

func TestDisabledBypass(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestService(t, mp, func(o *Options) { o.Disabled = true })

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if mp.Len() != 0 {
		t.Fatalf("disabled Set reached the provider")
	}
	if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("disabled Get: ok=%v err=%v", ok, err)
	}
	if s.Exists(ctx, "k") {
		t.Fatalf("disabled Exists must be false")
	}

	calls := 0
	for i := 0; i < 2; i++ {
		v, err := s.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
			calls++
			return []byte("computed"), nil
		})
		if err != nil || string(v) != "computed" {
			t.Fatalf("Remember: v=%q err=%v", v, err)
		}
	}
	if calls != 2 {
		t.Fatalf("disabled Remember should compute every time, got %d calls", calls)
	}

	st := s.Stats()
	if st.Hits != 0 || st.Misses != 0 || st.Sets != 0 || st.Enabled {
		t.Fatalf("disabled stats changed: %+v", st)
	}
}

func TestRememberIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)

	calls := 0
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte("once"), nil
	}
	for i := 0; i < 3; i++ {
		v, err := s.Remember(ctx, "k", time.Minute, fn)
		if err != nil || string(v) != "once" {
			t.Fatalf("Remember #%d: v=%q err=%v", i, v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestRememberComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)

	_, err := s.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom, got %v", err)
	}
	if s.Exists(ctx, "k") {
		t.Fatalf("failed compute must not be cached")
	}
	if _, err := s.Remember(ctx, "k", time.Minute, nil); !errors.Is(err, ErrNilCompute) {
		t.Fatalf("want ErrNilCompute, got %v", err)
	}
}

func TestRememberReturnsValueWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	fp := &faultyProvider{Provider: memory.New(), failSet: true}
	h := &recHooks{}
	s := newTestService(t, fp, func(o *Options) { o.Hooks = h })

	v, err := s.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	if err != nil || string(v) != "fresh" {
		t.Fatalf("Remember: v=%q err=%v", v, err)
	}
	if err := s.Set(ctx, "k", []byte("x"), time.Minute); !errors.Is(err, errBoom) {
		t.Fatalf("Set should surface provider error, got %v", err)
	}
	if len(h.provErr) == 0 || h.provErr[0] != "set" {
		t.Fatalf("expected set provider error hook, got %v", h.provErr)
	}
}

func TestReadErrorDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	fp := &faultyProvider{Provider: memory.New()}
	h := &recHooks{}
	s := newTestService(t, fp, func(o *Options) { o.Hooks = h })

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	fp.mu.Lock()
	fp.failGet = true
	fp.mu.Unlock()

	if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("read error should be a plain miss: ok=%v err=%v", ok, err)
	}
	if s.Stats().Misses != 1 {
		t.Fatalf("miss not counted: %+v", s.Stats())
	}
	if len(h.provErr) != 1 || h.provErr[0] != "get" {
		t.Fatalf("expected get provider error hook, got %v", h.provErr)
	}
}

func TestRejectedSetIsNotAnError(t *testing.T) {
	ctx := context.Background()
	fp := &faultyProvider{Provider: memory.New(), rejected: true}
	h := &recHooks{}
	s := newTestService(t, fp, func(o *Options) { o.Hooks = h })

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(h.rejected) != 1 || h.rejected[0] != "app:k" {
		t.Fatalf("rejected hook: %v", h.rejected)
	}
}

func TestSingleFlightCoalesces(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, func(o *Options) { o.SingleFlight = true })

	var (
		mu    sync.Mutex
		calls int
	)
	release := make(chan struct{})
	fn := func(context.Context) ([]byte, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return []byte("v"), nil
	}

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Remember(ctx, "hot", time.Minute, fn)
			if err == nil && string(v) != "v" {
				err = errors.New("bad value " + string(v))
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}
	// late arrivals may find the value already cached; none compute twice at once
	if calls < 1 || calls > 2 {
		t.Fatalf("fn called %d times", calls)
	}
}

func TestHitRate(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)

	if st := s.Stats(); st.HitRate != 0 {
		t.Fatalf("hit rate with no lookups = %v", st.HitRate)
	}
	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	for i := 0; i < 3; i++ {
		if _, ok, _ := s.Get(ctx, "k"); !ok {
			t.Fatalf("expected hit")
		}
	}
	_, _, _ = s.Get(ctx, "missing")

	st := s.Stats()
	if st.Hits != 3 || st.Misses != 1 || st.Sets != 1 {
		t.Fatalf("counters: %+v", st)
	}
	if st.HitRate != 75 {
		t.Fatalf("hit rate = %v, want 75", st.HitRate)
	}
	if st.Adapter != "memory" || !st.Enabled {
		t.Fatalf("stats meta: %+v", st)
	}
}

func TestHitRateRounding(t *testing.T) {
	if got := hitRate(1, 2); got != 33.33 {
		t.Fatalf("hitRate(1,2) = %v", got)
	}
	if got := hitRate(2, 1); got != 66.67 {
		t.Fatalf("hitRate(2,1) = %v", got)
	}
}

func TestCachedEmptyValueIsAHit(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	_ = s.Set(ctx, "empty", []byte{}, time.Minute)
	if _, ok, _ := s.Get(ctx, "empty"); !ok {
		t.Fatalf("empty value must be distinguishable from a miss")
	}
	if !s.Exists(ctx, "empty") {
		t.Fatalf("Exists on empty value")
	}
}

func TestDefaultAndForeverTTL(t *testing.T) {
	ctx := context.Background()
	var seen []time.Duration
	rec := &ttlRecorder{Provider: memory.New(), seen: &seen}
	s := newTestService(t, rec, func(o *Options) { o.DefaultTTL = 7 * time.Minute })

	_ = s.Set(ctx, "a", []byte("1"), 0)
	_ = s.Forever(ctx, "b", []byte("2"))
	if len(seen) != 2 || seen[0] != 7*time.Minute || seen[1] != ForeverTTL {
		t.Fatalf("ttls: %v", seen)
	}
}

type ttlRecorder struct {
	pr.Provider
	seen *[]time.Duration
}

func (p *ttlRecorder) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	*p.seen = append(*p.seen, ttl)
	return p.Provider.Set(ctx, key, value, cost, ttl)
}

func TestClearAndClose(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestService(t, mp, nil)
	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), time.Minute)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mp.Len() != 0 {
		t.Fatalf("Clear left %d entries", mp.Len())
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSingleFlightSeparatesValueTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, func(o *Options) { o.SingleFlight = true })
	names := NewTyped[string](s, codec.String{})

	if flightKey[string]("app:k") == flightKey[[]byte]("app:k") {
		t.Fatalf("flight keys of different value types collided")
	}

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("raw"), nil
		})
		done <- err
	}()
	<-started

	// a string view of the same key must not wait on, or receive, the []byte flight
	got := make(chan string, 1)
	go func() {
		v, err := names.Remember(ctx, "k", time.Minute, func(context.Context) (string, error) {
			return "typed", nil
		})
		if err != nil {
			v = "err: " + err.Error()
		}
		got <- v
	}()
	select {
	case v := <-got:
		if v != "typed" {
			t.Fatalf("typed Remember = %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("typed Remember joined the []byte flight")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("bytes Remember: %v", err)
	}
}
