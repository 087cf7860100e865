package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

const (
	SchemeLocmem    = "locmem"
	SchemeRedis     = "redis"
	SchemeRediss    = "rediss"
	SchemeRistretto = "ristretto"
	SchemeBigcache  = "bigcache"
)

var ErrUnknownBackend = errors.New("config: unknown cache backend")

// Backend is a parsed backend URI.
type Backend struct {
	Scheme string
	Host   string
	Params map[string]string
	URI    string
}

// ParseBackend splits a backend URI such as "ristretto://?max_cost=1048576".
func ParseBackend(uri string) (Backend, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Backend{}, fmt.Errorf("config: backend %q: %w", uri, err)
	}
	switch u.Scheme {
	case SchemeLocmem, SchemeRedis, SchemeRediss, SchemeRistretto, SchemeBigcache:
	case "":
		return Backend{}, fmt.Errorf("config: backend %q: missing scheme", uri)
	default:
		return Backend{}, fmt.Errorf("%w: %q", ErrUnknownBackend, u.Scheme)
	}
	b := Backend{Scheme: u.Scheme, Host: u.Host, Params: map[string]string{}, URI: uri}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			b.Params[k] = vs[0]
		}
	}
	return b, nil
}

// Int returns the named param, or def when it is missing or not a positive integer.
func (b Backend) Int(name string, def int64) int64 {
	v, err := strconv.ParseInt(b.Params[name], 10, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Duration returns the named param, or def when it is missing or invalid.
func (b Backend) Duration(name string, def time.Duration) time.Duration {
	v, err := str2duration.ParseDuration(b.Params[name])
	if err != nil || v <= 0 {
		return def
	}
	return v
}
