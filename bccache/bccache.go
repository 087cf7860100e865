// Package bccache stores compiled template code ("buckets") in a provider.Provider.
//
// A bucket is keyed by a digest of the template name and filename. The stored
// frame carries a checksum of the template source; a bucket whose checksum does
// not match the caller's source comes back empty, so the caller recompiles and
// calls SetBucket.
package bccache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/internal/util"
	"github.com/unkn0wn-root/tplcache/internal/wire"
	"github.com/unkn0wn-root/tplcache/provider"
)

const DefaultPrefix = "tplcache/bytecode/"

// Bucket holds the compiled code for one template.
// Code is nil when nothing usable was cached.
type Bucket struct {
	Name     string
	Filename string
	Key      string
	Checksum string
	Code     []byte
}

// Reset drops the cached code.
func (b *Bucket) Reset() { b.Code = nil }

// Options configure a Cache.
type Options struct {
	Prefix  string        // "" => DefaultPrefix
	Timeout time.Duration // 0 or provider.NoExpiration => no expiry

	// IgnoreErrors makes backend failures look like misses (reads) or
	// silent drops (writes). nil => true.
	IgnoreErrors *bool

	Logger tplcache.Logger // nil => NopLogger
}

// BackendError wraps a provider failure.
type BackendError struct {
	Op  string // "get" | "set" | "clear"
	Key string
	Err error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("bccache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bccache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

var ErrNilProvider = errors.New("bccache: nil provider")

// Cache adapts a provider into a bytecode cache. It holds no state of its own.
type Cache struct {
	p       provider.Provider
	prefix  string
	timeout time.Duration
	ignore  bool
	log     tplcache.Logger
}

func New(p provider.Provider, opts Options) (*Cache, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	c := &Cache{
		p:       p,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		ignore:  true,
	}
	if c.prefix == "" {
		c.prefix = DefaultPrefix
	}
	if opts.IgnoreErrors != nil {
		c.ignore = *opts.IgnoreErrors
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With(tplcache.Fields{"component": "bccache"})
	} else {
		c.log = tplcache.NopLogger{}
	}
	return c, nil
}

// GetBucket returns the bucket for (name, filename), loaded from the provider
// when a matching frame exists. The error is non-nil only for backend failures
// with IgnoreErrors disabled; the bucket is always usable.
func (c *Cache) GetBucket(ctx context.Context, name, filename, source string) (*Bucket, error) {
	b := &Bucket{
		Name:     name,
		Filename: filename,
		Key:      util.Digest(name, filename),
		Checksum: util.Digest(source),
	}

	raw, ok, err := c.p.Get(ctx, c.prefix+b.Key)
	if err != nil {
		c.log.Warn("bytecode read failed", tplcache.Fields{"template": name, "err": err})
		if c.ignore {
			return b, nil
		}
		return b, &BackendError{Op: "get", Key: b.Key, Err: err}
	}
	if !ok {
		return b, nil
	}

	cs, code, err := wire.DecodeBucket(raw)
	if err != nil {
		c.log.Debug("corrupt bucket; ignoring", tplcache.Fields{"template": name})
		return b, nil
	}
	if cs != b.Checksum {
		c.log.Debug("stale bucket", tplcache.Fields{"template": name})
		return b, nil
	}
	b.Code = append([]byte(nil), code...)
	return b, nil
}

// SetBucket stores b's code. A bucket without code is not written.
func (c *Cache) SetBucket(ctx context.Context, b *Bucket) error {
	if b == nil || b.Code == nil {
		return nil
	}
	frame, err := wire.EncodeBucket(b.Checksum, b.Code)
	if err != nil {
		return err
	}
	ok, err := c.p.Set(ctx, c.prefix+b.Key, frame, c.timeout)
	if err != nil {
		c.log.Warn("bytecode write failed", tplcache.Fields{"template": b.Name, "err": err})
		if c.ignore {
			return nil
		}
		return &BackendError{Op: "set", Key: b.Key, Err: err}
	}
	if !ok {
		c.log.Debug("bytecode write rejected by provider", tplcache.Fields{"template": b.Name})
	}
	return nil
}

// Clear removes every bucket the provider holds. Errors are always returned.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.p.Clear(ctx); err != nil {
		return &BackendError{Op: "clear", Err: err}
	}
	return nil
}

// Close closes the underlying provider.
func (c *Cache) Close(ctx context.Context) error { return c.p.Close(ctx) }
