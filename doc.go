// Package tplcache is an in-process cache for compiled template bytecode.
//
// Components:
//   - locmem.Store: named byte store with per-entry expiry, an entry cap and
//     approximate culling. Stores live in a locmem.Registry; one per name.
//   - Cache[V]: typed handle on a named store. Derives storage keys from a
//     prefix and version, (de)serializes V through a codec.Codec[V].
//   - bccache: stores compiled template buckets through any provider.Provider.
//   - loader: resolves template files and loads them through the bytecode cache.
//
// Keys:
//
//	<prefix>:<version>:<key>
//
// Typical use:
//
//	reg := locmem.NewRegistry()
//	tpl, _ := tplcache.New[[]byte](tplcache.Options[[]byte]{
//	    Name:           "templates",
//	    Registry:       reg,
//	    Codec:          codec.Bytes{},
//	    DefaultTimeout: tplcache.NoExpiration,
//	})
//	tpl.Set("index.html", code, 0)
package tplcache
