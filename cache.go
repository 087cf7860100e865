package tplcache

import (
	"time"

	c "github.com/unkn0wn-root/tplcache/codec"
	"github.com/unkn0wn-root/tplcache/locmem"
)

type cache[V any] struct {
	name  string
	store *locmem.Store
	codec c.Codec[V]
	log   Logger
	hooks Hooks

	defaultTimeout time.Duration
	prefix         string
	version        int
	keyFunc        KeyFunc
}

var _ Cache[[]byte] = (*cache[[]byte])(nil)

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Name == "" {
		return nil, &OptionError{Field: "name"}
	}
	if opts.Registry == nil {
		return nil, &OptionError{Field: "registry"}
	}
	if opts.Codec == nil {
		return nil, &OptionError{Field: "codec"}
	}

	c := &cache[V]{
		name:   opts.Name,
		codec:  opts.Codec,
		prefix: opts.KeyPrefix,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{}).With(Fields{"cache": opts.Name})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTimeout = coalesce[time.Duration](opts.DefaultTimeout, DefaultTimeout)
	c.version = coalesce[int](opts.Version, DefaultVersion)
	if opts.KeyFunc != nil {
		c.keyFunc = opts.KeyFunc
	} else {
		c.keyFunc = DefaultKeyFunc
	}

	// Observers belong to whichever handle creates the store.
	store, created := opts.Registry.Open(opts.Name, locmem.Config{
		MaxEntries:    opts.MaxEntries,
		CullFrequency: opts.CullFrequency,
		OnCull:        c.culled,
		OnExpire:      c.hooks.Expired,
	})
	c.store = store
	if created {
		c.log.Debug("store created", Fields{
			"max_entries":    store.MaxEntries(),
			"cull_frequency": store.CullFrequency(),
		})
	} else if opts.MaxEntries > 0 && opts.MaxEntries != store.MaxEntries() {
		c.log.Warn("store already exists; sizing options ignored", Fields{
			"max_entries":    store.MaxEntries(),
			"requested_max":  opts.MaxEntries,
			"cull_frequency": store.CullFrequency(),
		})
	}
	return c, nil
}

func (c *cache[V]) Name() string { return c.name }

func (c *cache[V]) Get(key string, opts ...CallOption) (V, bool) {
	return c.get(c.MakeKey(key, opts...))
}

func (c *cache[V]) GetOr(key string, def V, opts ...CallOption) V {
	if v, ok := c.Get(key, opts...); ok {
		return v
	}
	return def
}

func (c *cache[V]) Set(key string, value V, timeout time.Duration, opts ...CallOption) {
	sk := c.MakeKey(key, opts...)
	b, ok := c.encode(sk, value)
	if !ok {
		return
	}
	c.store.Set(sk, b, c.timeout(timeout))
}

func (c *cache[V]) Add(key string, value V, timeout time.Duration, opts ...CallOption) bool {
	sk := c.MakeKey(key, opts...)
	b, ok := c.encode(sk, value)
	if !ok {
		return false
	}
	return c.store.Add(sk, b, c.timeout(timeout))
}

func (c *cache[V]) Contains(key string, opts ...CallOption) bool {
	return c.store.Contains(c.MakeKey(key, opts...))
}

func (c *cache[V]) Delete(key string, opts ...CallOption) {
	c.store.Delete(c.MakeKey(key, opts...))
}

func (c *cache[V]) Clear() {
	n := c.store.Len()
	c.store.Clear()
	c.log.Info("cache cleared", Fields{"entries": n})
}

func (c *cache[V]) GetMany(keys []string, opts ...CallOption) map[string]V {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := c.Get(k, opts...); ok {
			out[k] = v
		}
	}
	return out
}

func (c *cache[V]) SetMany(items map[string]V, timeout time.Duration, opts ...CallOption) {
	for k, v := range items {
		c.Set(k, v, timeout, opts...)
	}
}

func (c *cache[V]) DeleteMany(keys []string, opts ...CallOption) {
	for _, k := range keys {
		c.Delete(k, opts...)
	}
}

// IncrVersion is not atomic: a concurrent writer on either version may interleave.
// The moved value gets the handle's default timeout.
func (c *cache[V]) IncrVersion(key string, delta int, opts ...CallOption) (int, error) {
	cl := c.callOpts(opts)
	b, ok := c.store.Get(c.keyFunc(key, c.prefix, cl.version))
	if !ok {
		return 0, ErrNotFound
	}
	if delta == 0 {
		return cl.version, nil
	}
	next := cl.version + delta
	c.store.Set(c.MakeKey(key, WithVersion(next)), b, c.defaultTimeout)
	c.store.Delete(c.keyFunc(key, c.prefix, cl.version))
	return next, nil
}

// MakeKey returns the storage key for key.
func (c *cache[V]) MakeKey(key string, opts ...CallOption) string {
	sk := c.keyFunc(key, c.prefix, c.callOpts(opts).version)
	if reason := keyWarning(sk); reason != "" {
		c.hooks.KeyWarning(sk, reason)
		c.log.Debug("non-portable cache key", Fields{"key": sk, "reason": reason})
	}
	return sk
}

func (c *cache[V]) Len() int { return c.store.Len() }

func (c *cache[V]) callOpts(opts []CallOption) call {
	cl := call{version: c.version}
	for _, o := range opts {
		o(&cl)
	}
	return cl
}

func (c *cache[V]) get(sk string) (V, bool) {
	var zero V
	b, ok := c.store.Get(sk)
	if !ok {
		return zero, false
	}
	v, err := c.codec.Decode(b)
	if err != nil {
		c.hooks.DecodeFailed(sk, err)
		c.log.Debug("decode failed; treating as miss", Fields{"key": sk, "err": err})
		return zero, false
	}
	return v, true
}

func (c *cache[V]) encode(sk string, v V) ([]byte, bool) {
	b, err := c.codec.Encode(v)
	if err != nil {
		c.hooks.EncodeFailed(sk, err)
		c.log.Debug("encode failed; write dropped", Fields{"key": sk, "err": err})
		return nil, false
	}
	return b, true
}

// timeout maps 0 to the default. NoExpiration and negative values pass through:
// the store treats a negative ttl other than NoExpiration as already expired.
func (c *cache[V]) timeout(t time.Duration) time.Duration {
	if t == 0 {
		return c.defaultTimeout
	}
	return t
}

func (c *cache[V]) culled(removed int) {
	c.hooks.Culled(c.name, removed)
	c.log.Debug("store culled", Fields{"removed": removed})
}
