// Package setup builds the template cache environment described by config.Settings.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/bccache"
	"github.com/unkn0wn-root/tplcache/codec"
	"github.com/unkn0wn-root/tplcache/config"
	"github.com/unkn0wn-root/tplcache/loader"
	"github.com/unkn0wn-root/tplcache/locmem"
	"github.com/unkn0wn-root/tplcache/provider"
	pbig "github.com/unkn0wn-root/tplcache/provider/bigcache"
	plocmem "github.com/unkn0wn-root/tplcache/provider/locmem"
	predis "github.com/unkn0wn-root/tplcache/provider/redis"
	pristretto "github.com/unkn0wn-root/tplcache/provider/ristretto"
)

// CacheName is the locmem store that holds compiled templates.
const CacheName = "templates"

// Deps are process-wide collaborators. All are optional.
type Deps struct {
	Registry     *locmem.Registry     // nil => a private registry
	SearchCaches *loader.SearchCaches // nil => a private set
	Compiler     loader.Compiler      // nil => no Loader is built
	Logger       tplcache.Logger      // nil => NopLogger
	Hooks        tplcache.Hooks       // nil => NopHooks
}

// Env is a configured template cache.
type Env struct {
	Backend  config.Backend
	Cache    tplcache.Cache[[]byte] // set only for locmem backends
	Provider provider.Provider
	Bytecode *bccache.Cache
	Loader   *loader.Loader // nil unless enabled

	searches *loader.SearchCaches
	log      tplcache.Logger
}

// Build wires the backend, bytecode cache and (when enabled) the loader.
// It returns tplcache.ErrNotConfigured when no backend is set.
func Build(ctx context.Context, s *config.Settings, deps Deps) (*Env, error) {
	if s == nil || s.Backend == "" {
		return nil, tplcache.ErrNotConfigured
	}
	be, err := config.ParseBackend(s.Backend)
	if err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = tplcache.NopLogger{}
	}
	if deps.Registry == nil {
		deps.Registry = locmem.NewRegistry()
	}
	if deps.SearchCaches == nil {
		deps.SearchCaches = loader.NewSearchCaches()
	}

	env := &Env{Backend: be, searches: deps.SearchCaches, log: log}
	if err := env.openProvider(ctx, s, deps); err != nil {
		return nil, err
	}

	env.Bytecode, err = bccache.New(env.Provider, bccache.Options{
		Timeout: s.Timeout.Std(),
		Logger:  log,
	})
	if err != nil {
		return nil, errors.Join(err, env.Provider.Close(ctx))
	}

	if s.Enabled && deps.Compiler != nil {
		env.Loader, err = loader.New(loader.Options{
			Source: loader.ChoiceSource{
				loader.NewFileSource(s.TemplateDirs, loader.FileOptions{
					MstatDisabled: s.MstatDisabled,
					Caches:        deps.SearchCaches,
				}),
			},
			Compiler: deps.Compiler,
			Bytecode: env.Bytecode,
			Logger:   log,
		})
		if err != nil {
			return nil, errors.Join(err, env.Close(ctx))
		}
	}

	log.Info("template cache ready", tplcache.Fields{
		"backend": be.Scheme,
		"enabled": s.Enabled,
		"loader":  env.Loader != nil,
	})
	return env, nil
}

func (e *Env) openProvider(ctx context.Context, s *config.Settings, deps Deps) error {
	var err error
	switch e.Backend.Scheme {
	case config.SchemeLocmem:
		e.Cache, err = tplcache.New[[]byte](tplcache.Options[[]byte]{
			Name:           CacheName,
			Registry:       deps.Registry,
			Codec:          codec.Bytes{},
			MaxEntries:     s.MaxEntries,
			CullFrequency:  s.CullFrequency,
			DefaultTimeout: tplcache.NoExpiration,
			KeyPrefix:      s.KeyPrefix,
			Version:        s.Version,
			Logger:         deps.Logger,
			Hooks:          deps.Hooks,
		})
		if err != nil {
			return err
		}
		e.Provider, err = plocmem.New(e.Cache)

	case config.SchemeRedis, config.SchemeRediss:
		var opt *goredis.Options
		opt, err = goredis.ParseURL(redisURL(e.Backend.URI))
		if err != nil {
			return fmt.Errorf("setup: redis backend: %w", err)
		}
		e.Provider, err = predis.New(predis.Config{
			Client:      goredis.NewClient(opt),
			Prefix:      e.Backend.Params["prefix"],
			CloseClient: true,
		})

	case config.SchemeRistretto:
		e.Provider, err = pristretto.New(pristretto.Config{
			NumCounters: e.Backend.Int("num_counters", pristretto.DefaultNumCounters),
			MaxCost:     e.Backend.Int("max_cost", pristretto.DefaultMaxCost),
			BufferItems: e.Backend.Int("buffer_items", pristretto.DefaultBufferItems),
		})

	case config.SchemeBigcache:
		e.Provider, err = pbig.New(ctx, pbig.Config{
			LifeWindow:         e.Backend.Duration("life_window", pbig.DefaultLifeWindow),
			HardMaxCacheSizeMB: int(e.Backend.Int("hard_max_mb", 0)),
		})

	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownBackend, e.Backend.Scheme)
	}
	return err
}

// redisURL drops the params go-redis does not understand.
func redisURL(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	q.Del("prefix")
	u.RawQuery = q.Encode()
	return u.String()
}

// Flush removes every cached bucket and forgets memoized template lookups.
func (e *Env) Flush(ctx context.Context) error {
	if e == nil || e.Bytecode == nil {
		return tplcache.ErrNotConfigured
	}
	if err := e.Bytecode.Clear(ctx); err != nil {
		return err
	}
	e.searches.Reset()
	e.log.Info("template cache flushed", tplcache.Fields{"backend": e.Backend.Scheme})
	return nil
}

// Close releases the provider.
func (e *Env) Close(ctx context.Context) error {
	if e == nil || e.Provider == nil {
		return nil
	}
	return e.Provider.Close(ctx)
}
