package tplcache

import (
	"time"

	c "github.com/unkn0wn-root/tplcache/codec"
	"github.com/unkn0wn-root/tplcache/locmem"
)

// NoExpiration as a timeout stores entries that never expire.
const NoExpiration = locmem.NoExpiration

// Cache is a typed handle on a named in-process store. Handles opened with the
// same Name on the same Registry share entries; prefix, version, codec and
// default timeout are per handle.
//
// A timeout of 0 means the handle's default timeout. Misses, expiry and codec
// failures are never errors: reads miss, Set drops, Add returns false.
type Cache[V any] interface {
	Name() string

	Get(key string, opts ...CallOption) (v V, ok bool)
	GetOr(key string, def V, opts ...CallOption) V
	Set(key string, value V, timeout time.Duration, opts ...CallOption)
	Add(key string, value V, timeout time.Duration, opts ...CallOption) bool
	Contains(key string, opts ...CallOption) bool
	Delete(key string, opts ...CallOption)
	Clear()

	// Bulk helpers; each key is handled independently.
	GetMany(keys []string, opts ...CallOption) map[string]V
	SetMany(items map[string]V, timeout time.Duration, opts ...CallOption)
	DeleteMany(keys []string, opts ...CallOption)

	// IncrVersion moves the value stored under key from its current version to
	// version+delta and returns the new version.
	IncrVersion(key string, delta int, opts ...CallOption) (int, error)

	MakeKey(key string, opts ...CallOption) string
	Len() int
}

// Options configure a cache handle.
// Name, Registry and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Name     string           // selects the shared store, e.g. "templates"
	Registry *locmem.Registry // process-wide store registry
	Codec    c.Codec[V]

	// Store sizing, applied only when this handle creates the store.
	MaxEntries    int  // <= 0 => 300
	CullFrequency *int // nil => MaxEntries; 0 => clear all on overflow

	DefaultTimeout time.Duration // 0 => 300s; NoExpiration => never
	KeyPrefix      string
	Version        int     // 0 => 1
	KeyFunc        KeyFunc // nil => DefaultKeyFunc
	Logger         Logger  // nil => NopLogger
	Hooks          Hooks   // nil => NopHooks
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}

// CallOption adjusts a single operation.
type CallOption func(*call)

type call struct {
	version int
}

// WithVersion overrides the handle's version for one call.
func WithVersion(v int) CallOption {
	return func(c *call) { c.version = v }
}
