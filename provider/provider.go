// Package provider defines the byte store the bytecode cache writes through.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation).
//
// The in-process default is provider/locmem. provider/redis, provider/ristretto
// and provider/bigcache are drop-in alternatives.
package provider

import (
	"context"
	"time"
)

// NoExpiration as a ttl stores a value that never expires.
const NoExpiration time.Duration = -1

// Expired reports whether ttl describes a deadline already in the past.
func Expired(ttl time.Duration) bool { return ttl < 0 && ttl != NoExpiration }

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl == 0 or NoExpiration means no
	// expiry; any other negative ttl is already expired and removes key.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Clear removes every key this provider owns.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
