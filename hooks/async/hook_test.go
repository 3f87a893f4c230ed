package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type countHooks struct {
	tagcache.NopHooks
	mu    sync.Mutex
	heals int
	block chan struct{}
}

func (c *countHooks) SelfHeal(string, string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.heals++
	c.mu.Unlock()
}

func TestDeliversBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 100)
	for i := 0; i < 50; i++ {
		h.SelfHeal("k", "decode")
	}
	h.Close()
	if inner.heals != 50 {
		t.Fatalf("delivered %d, want 50", inner.heals)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped %d", h.Dropped())
	}
}

func TestDropsWhenFullAndAfterClose(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// worker picks up the first event and blocks, the second fills the queue
	h.SelfHeal("k", "decode")
	for h.Dropped() == 0 {
		h.SelfHeal("k", "decode")
	}
	close(inner.block)
	h.Close()

	before := h.Dropped()
	h.SelfHeal("k", "decode")
	if h.Dropped() != before+1 {
		t.Fatalf("event after Close was not counted as dropped")
	}
}
