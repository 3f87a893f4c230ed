package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

// StatsSource is satisfied by *tagcache.Service.
type StatsSource interface {
	Stats() tagcache.Stats
}

// Collector exports a service's counters at scrape time.
type Collector struct {
	src     StatsSource
	hits    *prometheus.Desc
	misses  *prometheus.Desc
	sets    *prometheus.Desc
	hitRate *prometheus.Desc
	enabled *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector describes src's statistics; prefix becomes a const label so
// several services can share one registry.
func NewCollector(namespace, prefix string, src StatsSource) *Collector {
	labels := prometheus.Labels{"prefix": prefix}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, variable, labels)
	}
	return &Collector{
		src:     src,
		hits:    desc("hits_total", "Lookups served from the cache."),
		misses:  desc("misses_total", "Lookups not served from the cache."),
		sets:    desc("sets_total", "Writes issued to the provider."),
		hitRate: desc("hit_rate_percent", "Hits over lookups, percent."),
		enabled: desc("enabled", "1 when caching is enabled.", "adapter"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.sets
	ch <- c.hitRate
	ch <- c.enabled
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	enabled := 0.0
	if st.Enabled {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(st.Sets))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, enabled, st.Adapter)
}
