// Package sloghooks logs cache events to a *slog.Logger.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/internal/util"
)

type Options struct {
	// Sampling to avoid floods: log the first of every n events; 0/1 = log all.
	ExpiredEvery    uint64
	KeyWarningEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	expiredCtr atomic.Uint64
	warnCtr    atomic.Uint64
}

var _ tplcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Digest(k)[:16]
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return (ctr.Add(1)-1)%n == 0 // first of every n
}

func (h *Hooks) EncodeFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tplcache.encode_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) DecodeFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tplcache.decode_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) Expired(storageKey string) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("tplcache.expired", "key", h.redact(storageKey))
}

func (h *Hooks) Culled(cache string, removed int) {
	if h.l == nil {
		return
	}
	h.l.Info("tplcache.culled",
		"cache", cache,
		"removed", removed)
}

func (h *Hooks) KeyWarning(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.KeyWarningEvery, &h.warnCtr) {
		return
	}
	h.l.Warn("tplcache.key_warning",
		"key", h.redact(storageKey),
		"reason", reason)
}
