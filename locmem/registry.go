package locmem

import (
	"sort"
	"sync"
)

const (
	DefaultMaxEntries    = 300
	DefaultCullFrequency = 3
)

// Config sizes a Store. Invalid values are coerced to defaults, never reported.
type Config struct {
	// MaxEntries caps the number of entries; <= 0 => DefaultMaxEntries.
	MaxEntries int
	// CullFrequency controls how much a cull removes: roughly 1/CullFrequency of
	// the entries. nil or negative => MaxEntries (or DefaultCullFrequency when
	// MaxEntries was invalid). 0 => clear the whole store on overflow.
	CullFrequency *int

	// Optional observers, called outside the store lock.
	OnCull   func(removed int)
	OnExpire func(key string)
}

// CullEvery is a helper for Config.CullFrequency.
func CullEvery(n int) *int { return &n }

func (c Config) resolve() (maxEntries, cullFrequency int) {
	maxEntries = c.MaxEntries
	valid := maxEntries > 0
	if !valid {
		maxEntries = DefaultMaxEntries
	}
	switch {
	case c.CullFrequency != nil && *c.CullFrequency >= 0:
		cullFrequency = *c.CullFrequency
	case valid:
		cullFrequency = maxEntries
	default:
		cullFrequency = DefaultCullFrequency
	}
	return maxEntries, cullFrequency
}

// Registry maps cache names to their stores. A store is created the first time
// its name is opened and lives as long as the registry.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Open returns the store registered under name, creating it with cfg if absent.
// The configuration of the first Open wins; later configs are ignored.
// created reports whether this call made the store.
func (r *Registry) Open(name string, cfg Config) (s *Store, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s, false
	}
	s = newStore(name, cfg)
	r.stores[name] = s
	return s, true
}

func (r *Registry) Lookup(name string) (*Store, bool) {
	r.mu.Lock()
	s, ok := r.stores[name]
	r.mu.Unlock()
	return s, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.stores))
	for n := range r.stores {
		out = append(out, n)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}
