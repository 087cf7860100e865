package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/bccache"
	"github.com/unkn0wn-root/tplcache/codec"
	"github.com/unkn0wn-root/tplcache/locmem"
	plocmem "github.com/unkn0wn-root/tplcache/provider/locmem"
)

type countingCompiler struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingCompiler) Compile(source, name, _ string) ([]byte, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return []byte("code(" + name + "):" + source), nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newBytecode(t *testing.T) *bccache.Cache {
	t.Helper()
	c, err := tplcache.New[[]byte](tplcache.Options[[]byte]{
		Name:           "templates",
		Registry:       locmem.NewRegistry(),
		Codec:          codec.Bytes{},
		DefaultTimeout: tplcache.NoExpiration,
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := plocmem.New(c)
	if err != nil {
		t.Fatal(err)
	}
	bc, err := bccache.New(p, bccache.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return bc
}

func TestLoadCompilesOnceThenHitsCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pages/index.html", "hello")

	cmp := &countingCompiler{}
	l, err := New(Options{
		Source:   NewFileSource([]string{dir}, FileOptions{}),
		Compiler: cmp,
		Bytecode: newBytecode(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := l.Load(ctx, "pages/index.html")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.Cached || string(first.Code) != "code(pages/index.html):hello" {
		t.Fatalf("first load: cached=%v code=%q", first.Cached, first.Code)
	}

	second, err := l.Load(ctx, "pages/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || !reflect.DeepEqual(second.Code, first.Code) {
		t.Fatalf("second load should come from cache: cached=%v code=%q", second.Cached, second.Code)
	}
	if n := cmp.calls.Load(); n != 1 {
		t.Fatalf("compiled %d times", n)
	}
}

func TestLoadWithoutBytecodeAlwaysCompiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.html", "a")
	cmp := &countingCompiler{}
	l, _ := New(Options{Source: NewFileSource([]string{dir}, FileOptions{}), Compiler: cmp})

	for i := 0; i < 3; i++ {
		if _, err := l.Load(context.Background(), "a.html"); err != nil {
			t.Fatal(err)
		}
	}
	if cmp.calls.Load() != 3 {
		t.Fatalf("compiled %d times, want 3", cmp.calls.Load())
	}
}

func TestLoadConcurrentCollapses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "slow.html", "s")
	cmp := &countingCompiler{delay: 50 * time.Millisecond}
	l, _ := New(Options{Source: NewFileSource([]string{dir}, FileOptions{}), Compiler: cmp})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(context.Background(), "slow.html"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := cmp.calls.Load(); n != 1 {
		t.Fatalf("concurrent loads compiled %d times", n)
	}
}

func TestLoadCancelledCallerDoesNotFailOthers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "slow.html", "s")
	cmp := &countingCompiler{delay: 100 * time.Millisecond}
	l, _ := New(Options{Source: NewFileSource([]string{dir}, FileOptions{}), Compiler: cmp})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, "slow.html")
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan *Template, 1)
	go func() {
		tpl, err := l.Load(context.Background(), "slow.html")
		if err != nil {
			t.Error(err)
		}
		second <- tpl
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: %v", err)
	}
	if tpl := <-second; tpl == nil || string(tpl.Code) != "code(slow.html):s" {
		t.Fatalf("joined caller should still get the template: %+v", tpl)
	}
	if n := cmp.calls.Load(); n != 1 {
		t.Fatalf("compiled %d times", n)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.html", "x")
	boom := errors.New("syntax")
	l, _ := New(Options{Source: NewFileSource([]string{dir}, FileOptions{}), Compiler: &countingCompiler{err: boom}})

	if _, err := l.Load(context.Background(), "missing.html"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing: %v", err)
	}
	if _, err := l.Load(context.Background(), "bad.html"); !errors.Is(err, boom) {
		t.Fatalf("compile error not propagated: %v", err)
	}
}

func TestNewRequiresSourceAndCompiler(t *testing.T) {
	var oe *tplcache.OptionError
	if _, err := New(Options{Compiler: &countingCompiler{}}); !errors.As(err, &oe) || oe.Field != "source" {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(Options{Source: ChoiceSource{}}); !errors.As(err, &oe) || oe.Field != "compiler" {
		t.Fatalf("err=%v", err)
	}
}

func TestFileSourceSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, second, "a.html", "2")
	want := writeFile(t, first, "a.html", "1")
	writeFile(t, second, "b.html", "2")

	s := NewFileSource([]string{first, second}, FileOptions{})
	if f, _, err := s.GetSource("a.html"); err != nil || f != want {
		t.Fatalf("GetSource = %q, %v; want %q", f, err, want)
	}
	if _, _, err := s.GetSource("b.html"); err != nil {
		t.Fatalf("fallback to second path: %v", err)
	}
}

func TestFileSourceRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.html", "")
	s := NewFileSource([]string{filepath.Join(dir, "sub")}, FileOptions{})
	for _, name := range []string{"../a.html", "x/../../a.html", "", "/"} {
		if _, _, err := s.GetSource(name); !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("%q: expected not found, got %v", name, err)
		}
	}
}

func TestSearchCacheSharedBySamePathSet(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "x.html", "")
	caches := NewSearchCaches()

	s1 := NewFileSource([]string{a, b}, FileOptions{Caches: caches})
	s2 := NewFileSource([]string{b, a, a}, FileOptions{Caches: caches})
	if s1.cache != s2.cache {
		t.Fatalf("same path set must share a search cache")
	}
	if s3 := NewFileSource([]string{a}, FileOptions{Caches: caches}); s3.cache == s1.cache {
		t.Fatalf("different path sets must not share")
	}

	f, up, err := s1.GetSource("x.html")
	if err != nil || !up() {
		t.Fatalf("GetSource: %v", err)
	}
	// memoized: still resolves after the file is gone
	if err := os.Remove(f); err != nil {
		t.Fatal(err)
	}
	if got, _, err := s2.GetSource("x.html"); err != nil || got != f {
		t.Fatalf("memoized lookup: %q %v", got, err)
	}

	caches.Reset()
	if _, _, err := s2.GetSource("x.html"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("after Reset: %v", err)
	}
}

func TestFileSourceMstat(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "m.html", "v1")
	off := false
	s := NewFileSource([]string{dir}, FileOptions{MstatDisabled: &off})

	_, up, err := s.GetSource("m.html")
	if err != nil {
		t.Fatal(err)
	}
	if !up() {
		t.Fatalf("fresh file reported stale")
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatal(err)
	}
	if up() {
		t.Fatalf("modified file reported up to date")
	}
	os.Remove(p)
	if up() {
		t.Fatalf("removed file reported up to date")
	}
	if _, _, err := s.GetSource("m.html"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("mstat source must not memoize: %v", err)
	}
}

func TestChoiceSource(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "one.html", "")
	writeFile(t, b, "two.html", "")
	writeFile(t, b, "nested/one.html", "")

	cs := ChoiceSource{
		NewFileSource([]string{a}, FileOptions{}),
		NewFileSource([]string{b}, FileOptions{}),
	}
	if _, _, err := cs.GetSource("two.html"); err != nil {
		t.Fatalf("second source: %v", err)
	}
	if _, _, err := cs.GetSource("three.html"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing: %v", err)
	}
	names, err := cs.ListTemplates()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"nested/one.html", "one.html", "two.html"}, names); diff != "" {
		t.Fatalf("ListTemplates mismatch (-want +got):\n%s", diff)
	}
}
