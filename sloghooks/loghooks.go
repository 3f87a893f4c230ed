// Package sloghooks reports tagcache hook events through log/slog, with
// sampling for the noisy ones and storage keys redacted by default.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/internal/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery      uint64
	ProviderErrorEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	provErrCtr  atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.Short(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tagcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderError(op, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.ProviderErrorEvery, &h.provErrCtr) {
		return
	}
	h.l.Warn("tagcache.provider_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

// Tags are logged in clear: they name groups, not records.
func (h *Hooks) TagIndexError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.tag_index_error",
		"tag", tag,
		"err", err)
}

func (h *Hooks) FlushIncomplete(tag string, failed int) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.flush_incomplete",
		"tag", tag,
		"failed", failed)
}

func (h *Hooks) PatternUnsupported(pattern string) {
	if h.l == nil {
		return
	}
	h.l.Info("tagcache.pattern_unsupported",
		"pattern", pattern)
}
