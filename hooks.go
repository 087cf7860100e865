package tplcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on hot paths.
// Wrap a slow sink with hooks/async.
type Hooks interface {
	// A value could not be serialized; the write was dropped.
	EncodeFailed(storageKey string, err error)

	// A stored payload could not be deserialized; the read became a miss.
	DecodeFailed(storageKey string, err error)

	// An expired entry was removed on read.
	Expired(storageKey string)

	// A write found the store full and evicted removed entries.
	Culled(cache string, removed int)

	// A key is accepted but would not be portable to memcached-like backends.
	// reason ∈ {"too_long", "control_char"}
	KeyWarning(storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EncodeFailed(string, error) {}
func (NopHooks) DecodeFailed(string, error) {}
func (NopHooks) Expired(string)             {}
func (NopHooks) Culled(string, int)         {}
func (NopHooks) KeyWarning(string, string)  {}
