// Package promhooks exports tagcache hook events and service statistics as
// Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

// Hooks counts hook events. Storage keys are never used as label values.
type Hooks struct {
	selfHeal           *prometheus.CounterVec
	providerErrors     *prometheus.CounterVec
	setRejected        prometheus.Counter
	tagIndexErrors     prometheus.Counter
	flushIncomplete    prometheus.Counter
	patternUnsupported prometheus.Counter
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New registers the hook counters with reg under namespace.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		selfHeal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "self_heal_total",
			Help: "Entries deleted on read because they could not be decoded.",
		}, []string{"reason"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "provider_errors_total",
			Help: "Errors returned by the storage provider, by operation.",
		}, []string{"op"}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "set_rejected_total",
			Help: "Writes the provider refused under pressure.",
		}),
		tagIndexErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "tag_index_errors_total",
			Help: "Failed tag index reads, appends or removals.",
		}),
		flushIncomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "flush_undeleted_keys_total",
			Help: "Tagged keys a flush could not delete.",
		}),
		patternUnsupported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "pattern_unsupported_total",
			Help: "Pattern clears refused because the provider cannot enumerate keys.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.selfHeal, h.providerErrors, h.setRejected,
		h.tagIndexErrors, h.flushIncomplete, h.patternUnsupported,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) SelfHeal(_ string, reason string)     { h.selfHeal.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderError(op, _ string, _ error)  { h.providerErrors.WithLabelValues(op).Inc() }
func (h *Hooks) ProviderSetRejected(string)           { h.setRejected.Inc() }
func (h *Hooks) TagIndexError(string, error)          { h.tagIndexErrors.Inc() }
func (h *Hooks) FlushIncomplete(_ string, failed int) { h.flushIncomplete.Add(float64(failed)) }
func (h *Hooks) PatternUnsupported(string)            { h.patternUnsupported.Inc() }
