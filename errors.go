package tplcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by IncrVersion when the key holds no live value.
	ErrNotFound = errors.New("tplcache: key not found")
	// ErrNotConfigured means no cache backend is set up.
	ErrNotConfigured = errors.New("tplcache: cache is not enabled or no backend is defined")
)

// OptionError reports a missing required field passed to New.
type OptionError struct {
	Field string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("tplcache: %s is required", e.Field)
}
