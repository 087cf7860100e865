// Package locmem is the in-process byte store behind tplcache.
//
// A Store keeps serialized values under already-derived keys together with an
// absolute expiration instant, enforces an entry cap and culls on overflow.
// Stores are named and shared through a Registry so independently built cache
// handles that use the same name observe each other's writes.
//
// Culling is approximate: when a write finds the store full, every
// entry whose position in enumeration (insertion) order is divisible by the
// cull frequency is dropped. A cull frequency of 0 drops everything.
package locmem

import (
	"container/list"
	"sync"
	"time"
)

// NoExpiration passed as ttl stores an entry that never expires.
const NoExpiration time.Duration = -1

type entry struct {
	value    []byte
	expireAt time.Time // zero => never
	elem     *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !e.expireAt.After(now)
}

// Store is a named, bounded, expiration-aware byte map.
// All methods are safe for concurrent use.
type Store struct {
	name string

	// mu guards entries and order as one unit.
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // of string keys, insertion order

	maxEntries    int
	cullFrequency int

	now      func() time.Time
	onCull   func(removed int)
	onExpire func(key string)
}

func newStore(name string, cfg Config) *Store {
	maxEntries, cullFrequency := cfg.resolve()
	return &Store{
		name:          name,
		entries:       make(map[string]*entry),
		order:         list.New(),
		maxEntries:    maxEntries,
		cullFrequency: cullFrequency,
		now:           time.Now,
		onCull:        cfg.OnCull,
		onExpire:      cfg.OnExpire,
	}
}

func (s *Store) Name() string       { return s.name }
func (s *Store) MaxEntries() int    { return s.maxEntries }
func (s *Store) CullFrequency() int { return s.cullFrequency }

// Get returns the stored bytes for key. The returned slice must be treated as read-only.
// An expired entry is removed and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.RUnlock()
		return nil, false
	}
	if !e.expired(s.now()) {
		v := e.value
		s.mu.RUnlock()
		return v, true
	}
	s.mu.RUnlock()

	s.expire(key)
	return nil, false
}

// Contains reports whether key holds a live entry. Same lazy-expiry protocol as Get.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.RUnlock()
		return false
	}
	live := !e.expired(s.now())
	s.mu.RUnlock()

	if !live {
		s.expire(key)
	}
	return live
}

// expire removes key under the write lock, but only if it is still present and
// still expired. Another writer may have replaced it between the read unlock and here.
func (s *Store) expire(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	removed := ok && e.expired(s.now())
	if removed {
		s.deleteLocked(key)
	}
	s.mu.Unlock()

	if removed && s.onExpire != nil {
		s.onExpire(key)
	}
}

// Set stores value under key. NoExpiration never expires; any other ttl <= 0
// stores an already-expired entry.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	removed := s.putLocked(key, value, ttl)
	s.mu.Unlock()
	s.reportCull(removed)
}

// Add stores value only if key is absent or expired. It reports whether it stored.
func (s *Store) Add(key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && !e.expired(s.now()) {
		s.mu.Unlock()
		return false
	}
	removed := s.putLocked(key, value, ttl)
	s.mu.Unlock()
	s.reportCull(removed)
	return true
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	s.deleteLocked(key)
	s.mu.Unlock()
}

// Clear empties the store. Name and capacity settings are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until they are touched.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	return n
}

// Keys returns the stored keys in enumeration order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	s.mu.RUnlock()
	return out
}

// putLocked returns the number of entries culled to make room.
func (s *Store) putLocked(key string, value []byte, ttl time.Duration) int {
	removed := 0
	if len(s.entries) >= s.maxEntries {
		removed = s.cullLocked()
	}

	var exp time.Time
	if ttl != NoExpiration {
		exp = s.now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)

	if e, ok := s.entries[key]; ok {
		// overwrite keeps the enumeration position
		e.value = b
		e.expireAt = exp
		return removed
	}
	s.entries[key] = &entry{
		value:    b,
		expireAt: exp,
		elem:     s.order.PushBack(key),
	}
	return removed
}

func (s *Store) cullLocked() int {
	if s.cullFrequency == 0 {
		n := len(s.entries)
		s.clearLocked()
		return n
	}
	var doomed []string
	i := 0
	for el := s.order.Front(); el != nil; el = el.Next() {
		if i%s.cullFrequency == 0 {
			doomed = append(doomed, el.Value.(string))
		}
		i++
	}
	for _, k := range doomed {
		s.deleteLocked(k)
	}
	return len(doomed)
}

func (s *Store) deleteLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	s.order.Remove(e.elem)
	delete(s.entries, key)
}

func (s *Store) clearLocked() {
	s.entries = make(map[string]*entry)
	s.order.Init()
}

func (s *Store) reportCull(removed int) {
	if removed > 0 && s.onCull != nil {
		s.onCull(removed)
	}
}
