package tplcache

import "time"

const (
	// DefaultTimeout applies when Options.DefaultTimeout is zero.
	DefaultTimeout = 300 * time.Second
	DefaultVersion = 1
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
