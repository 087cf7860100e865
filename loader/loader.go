// Package loader resolves templates on disk and serves their compiled code
// through a bytecode cache, compiling only on a miss.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/bccache"
)

// Compiler turns template source into code.
type Compiler interface {
	Compile(source, name, filename string) ([]byte, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(source, name, filename string) ([]byte, error)

func (f CompilerFunc) Compile(source, name, filename string) ([]byte, error) {
	return f(source, name, filename)
}

// Template is a loaded template.
type Template struct {
	Name     string
	Filename string
	Code     []byte
	Cached   bool // code came from the bytecode cache

	upToDate func() bool
}

// UpToDate reports whether the backing file is unchanged since the load.
func (t *Template) UpToDate() bool {
	if t.upToDate == nil {
		return true
	}
	return t.upToDate()
}

type Options struct {
	Source   Source
	Compiler Compiler
	Bytecode *bccache.Cache // nil => compile every load
	Logger   tplcache.Logger
}

// Loader is safe for concurrent use.
type Loader struct {
	src Source
	cmp Compiler
	bcc *bccache.Cache
	log tplcache.Logger
	sf  singleflight.Group
}

func New(opts Options) (*Loader, error) {
	if opts.Source == nil {
		return nil, &tplcache.OptionError{Field: "source"}
	}
	if opts.Compiler == nil {
		return nil, &tplcache.OptionError{Field: "compiler"}
	}
	l := &Loader{src: opts.Source, cmp: opts.Compiler, bcc: opts.Bytecode, log: tplcache.NopLogger{}}
	if opts.Logger != nil {
		l.log = opts.Logger.With(tplcache.Fields{"component": "loader"})
	}
	return l, nil
}

// Load resolves name and returns its code, from the bytecode cache when present.
// Concurrent loads of the same name share one resolution and compile. The shared
// load ignores cancellation; each caller stops waiting when its own ctx is done.
func (l *Loader) Load(ctx context.Context, name string) (*Template, error) {
	ch := l.sf.DoChan(name, func() (any, error) {
		return l.load(context.WithoutCancel(ctx), name)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Template), nil
	}
}

func (l *Loader) load(ctx context.Context, name string) (*Template, error) {
	filename, upToDate, err := l.src.GetSource(name)
	if err != nil {
		return nil, err
	}
	t := &Template{Name: name, Filename: filename, upToDate: upToDate}

	// Buckets are keyed by name and filename only; a changed file is picked
	// up after a flush.
	var b *bccache.Bucket
	if l.bcc != nil {
		b, err = l.bcc.GetBucket(ctx, name, filename, "")
		if err != nil {
			return nil, err
		}
		if b.Code != nil {
			t.Code, t.Cached = b.Code, true
			return t, nil
		}
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("template file %s not found: %w", filename, &NotFoundError{Name: name})
		}
		return nil, err
	}
	code, err := l.cmp.Compile(string(src), name, filename)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	t.Code = code
	l.log.Debug("template compiled", tplcache.Fields{"template": name, "filename": filename})

	if b != nil {
		b.Code = code
		if err := l.bcc.SetBucket(ctx, b); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ListTemplates lists every template the source can resolve.
func (l *Loader) ListTemplates() ([]string, error) { return l.src.ListTemplates() }
