package tagcache

import (
	"fmt"
	"math"
	"sync/atomic"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
}

// Stats is a point-in-time snapshot of the service counters. Counters are
// per process and start at zero.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	HitRate float64 // percent, two decimals; 0 before the first lookup
	Enabled bool
	Adapter string
}

func (s *Service) Stats() Stats {
	h, m := s.stats.hits.Load(), s.stats.misses.Load()
	return Stats{
		Hits:    h,
		Misses:  m,
		Sets:    s.stats.sets.Load(),
		HitRate: hitRate(h, m),
		Enabled: s.enabled,
		Adapter: adapterName(s.provider),
	}
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*100*100) / 100
}

func adapterName(p pr.Provider) string {
	if n, ok := p.(pr.Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}
