// Package locmem exposes a named in-process tplcache store as a provider.Provider.
package locmem

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/tplcache"
	pr "github.com/unkn0wn-root/tplcache/provider"
)

var ErrNilCache = errors.New("locmem provider: nil cache")

// Provider forwards to a tplcache.Cache[[]byte]. Keys passed in are the caller's
// keys; the cache still applies its own prefix and version.
type Provider struct {
	c tplcache.Cache[[]byte]
}

var _ pr.Provider = (*Provider)(nil)

func New(c tplcache.Cache[[]byte]) (*Provider, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := p.c.Get(key)
	return b, ok, nil
}

// Set maps ttl 0 to "never expires". Other negative ttls reach the store,
// which keeps NoExpiration forever and treats the rest as already expired.
func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = tplcache.NoExpiration
	}
	p.c.Set(key, value, ttl)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Clear(_ context.Context) error {
	p.c.Clear()
	return nil
}

// Close is a no-op: the store belongs to the registry and outlives providers.
func (p *Provider) Close(context.Context) error { return nil }

// Cache returns the wrapped handle.
func (p *Provider) Cache() tplcache.Cache[[]byte] { return p.c }
