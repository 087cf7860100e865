package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/tplcache"
)

type recorder struct {
	tplcache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) add(e string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Expired(k string)               { r.add("expired:" + k) }
func (r *recorder) Culled(c string, _ int)         { r.add("culled:" + c) }
func (r *recorder) DecodeFailed(k string, _ error) { r.add("decode:" + k) }
func (r *recorder) KeyWarning(k, reason string)    { r.add("warn:" + reason) }

func TestAsyncDeliversBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 1, 16)

	h.Expired("a")
	h.Culled("templates", 2)
	h.DecodeFailed("b", errors.New("x"))
	h.KeyWarning("c", "too_long")
	h.Close()

	if len(rec.events) != 4 {
		t.Fatalf("delivered %v", rec.events)
	}
	if rec.events[0] != "expired:a" || rec.events[3] != "warn:too_long" {
		t.Fatalf("single worker must preserve order: %v", rec.events)
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	for i := 0; i < 10; i++ {
		h.Expired("k")
	}
	close(rec.block)
	h.Close()

	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}
	if got := uint64(len(rec.events)) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

func TestAsyncAfterCloseIsSafe(t *testing.T) {
	h := New(&recorder{}, 2, 4)
	h.Close()
	h.Close()
	h.Expired("late")
	if h.Dropped() != 1 {
		t.Fatalf("event after close should be dropped, dropped=%d", h.Dropped())
	}
}
