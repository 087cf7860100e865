package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/unkn0wn-root/tplcache/internal/util"
)

var ErrTemplateNotFound = errors.New("template not found")

// NotFoundError reports a template no source could resolve.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("template not found: %s", e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }

// Source resolves template names to files.
type Source interface {
	// GetSource returns the file backing name and a func that reports whether
	// the file is unchanged since resolution.
	GetSource(name string) (filename string, upToDate func() bool, err error)
	ListTemplates() ([]string, error)
}

func alwaysUpToDate() bool { return true }

// SearchCaches holds resolved filenames shared by every FileSource with the
// same set of search paths.
type SearchCaches struct {
	mu     sync.Mutex
	caches map[string]*searchCache
}

func NewSearchCaches() *SearchCaches {
	return &SearchCaches{caches: make(map[string]*searchCache)}
}

func (s *SearchCaches) forPaths(paths []string) *searchCache {
	id := util.SetKey("search", paths)
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.caches[id]
	if !ok {
		sc = &searchCache{m: make(map[string]string)}
		s.caches[id] = sc
	}
	return sc
}

// Reset forgets every resolved filename.
func (s *SearchCaches) Reset() {
	s.mu.Lock()
	for _, sc := range s.caches {
		sc.reset()
	}
	s.mu.Unlock()
}

type searchCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func (c *searchCache) get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.m[name]
	return f, ok
}

func (c *searchCache) put(name, filename string) {
	c.mu.Lock()
	c.m[name] = filename
	c.mu.Unlock()
}

func (c *searchCache) reset() {
	c.mu.Lock()
	c.m = make(map[string]string)
	c.mu.Unlock()
}

// FileOptions configure a FileSource.
type FileOptions struct {
	// MstatDisabled skips modification-time checks and memoizes resolved
	// filenames. nil => true.
	MstatDisabled *bool
	// Caches shares resolution results across sources. nil => private.
	Caches *SearchCaches
}

// FileSource finds templates under an ordered list of directories.
type FileSource struct {
	paths []string
	mstat bool
	cache *searchCache
}

func NewFileSource(paths []string, opts FileOptions) *FileSource {
	disabled := true
	if opts.MstatDisabled != nil {
		disabled = *opts.MstatDisabled
	}
	caches := opts.Caches
	if caches == nil {
		caches = NewSearchCaches()
	}
	return &FileSource{
		paths: append([]string(nil), paths...),
		mstat: !disabled,
		cache: caches.forPaths(paths),
	}
}

func (s *FileSource) GetSource(name string) (string, func() bool, error) {
	if !s.mstat {
		if f, ok := s.cache.get(name); ok {
			return f, alwaysUpToDate, nil
		}
	}

	pieces, err := splitTemplatePath(name)
	if err != nil {
		return "", nil, err
	}
	for _, dir := range s.paths {
		filename := filepath.Join(append([]string{dir}, pieces...)...)
		fi, err := os.Stat(filename)
		if err != nil || fi.IsDir() {
			continue
		}
		if !s.mstat {
			s.cache.put(name, filename)
			return filename, alwaysUpToDate, nil
		}
		return filename, mtimeUpToDate(filename, fi.ModTime().UnixNano()), nil
	}
	return "", nil, &NotFoundError{Name: name}
}

func mtimeUpToDate(filename string, seen int64) func() bool {
	return func() bool {
		fi, err := os.Stat(filename)
		if err != nil {
			return false
		}
		return fi.ModTime().UnixNano() == seen
	}
}

// ListTemplates returns the sorted, de-duplicated names under every search path.
func (s *FileSource) ListTemplates() ([]string, error) {
	found := make(map[string]struct{})
	for _, dir := range s.paths {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			found[filepath.ToSlash(rel)] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sortedKeys(found), nil
}

func splitTemplatePath(name string) ([]string, error) {
	var pieces []string
	for _, p := range strings.Split(name, "/") {
		switch {
		case p == "..":
			return nil, &NotFoundError{Name: name}
		case p != "" && p != ".":
			pieces = append(pieces, p)
		}
	}
	if len(pieces) == 0 {
		return nil, &NotFoundError{Name: name}
	}
	return pieces, nil
}

// ChoiceSource tries each source in order.
type ChoiceSource []Source

func (cs ChoiceSource) GetSource(name string) (string, func() bool, error) {
	for _, s := range cs {
		f, up, err := s.GetSource(name)
		if err == nil {
			return f, up, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", nil, err
		}
	}
	return "", nil, &NotFoundError{Name: name}
}

// ListTemplates returns the sorted union of every source's templates.
func (cs ChoiceSource) ListTemplates() ([]string, error) {
	found := make(map[string]struct{})
	for _, s := range cs {
		names, err := s.ListTemplates()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			found[n] = struct{}{}
		}
	}
	return sortedKeys(found), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
