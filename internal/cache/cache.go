// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
	ErrInvalidTTL      = errors.New("cache ttl must be positive")
)

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	ReasonCapacity EvictReason = "capacity"
	ReasonExpired  EvictReason = "expired"
)

// Observer is notified of cache traffic. Calls are made with the cache lock
// held and must not call back into the cache.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted(reason EvictReason)
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Entries     int           `json:"entries"`
	Capacity    int           `json:"capacity"`
	TTL         time.Duration `json:"ttl"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	Evictions   uint64        `json:"evictions"`
	Expirations uint64        `json:"expirations"`
}

// HitRatio is hits over total lookups, 0 when nothing was looked up yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a string-keyed LRU cache with a fixed per-entry lifetime measured
// from insertion. Reads refresh recency but never extend the lifetime.
type Cache[V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, entry[V]]
	capacity int
	ttl      time.Duration
	now      func() time.Time
	observer Observer
	group    *singleflight.Group
	// generation changes on every Purge so loads started before it are not stored.
	generation uint64

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

type Option func(*options)

type options struct {
	now      func() time.Time
	observer Observer
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithObserver(observer Observer) Option {
	return func(o *options) { o.observer = observer }
}

func New[V any](capacity int, ttl time.Duration, opts ...Option) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	lru, err := simplelru.NewLRU[string, entry[V]](capacity, nil)
	if err != nil {
		return nil, err
	}

	return &Cache[V]{
		lru:      lru,
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
		observer: o.observer,
		group:    new(singleflight.Group),
	}, nil
}

// Get returns the live value for key and marks it most recently used. An
// expired entry is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		c.recordMiss()
		return zero, false
	}
	if c.expired(e, c.now()) {
		c.lru.Remove(key)
		c.recordExpired()
		c.recordMiss()
		return zero, false
	}
	c.recordHit()
	return e.value, true
}

// Peek is Get without touching recency or counters.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Peek(key)
	if !ok || c.expired(e, c.now()) {
		return zero, false
	}
	return e.value, true
}

// Add stores value under key with a fresh lifetime, evicting the least
// recently used entry when the cache is full.
func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(key, value, c.now())
}

// AddAt stores value as if it had been inserted at storedAt. Entries already
// past their lifetime are dropped and AddAt reports false.
func (c *Cache[V]) AddAt(key string, value V, storedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value, storedAt: storedAt}
	if c.expired(e, c.now()) {
		return false
	}
	c.add(key, value, storedAt)
	return true
}

func (c *Cache[V]) add(key string, value V, storedAt time.Time) {
	if evicted := c.lru.Add(key, entry[V]{value: value, storedAt: storedAt}); evicted {
		c.evictions++
		if c.observer != nil {
			c.observer.CacheEvicted(ReasonCapacity)
		}
	}
}

func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Len counts stored entries, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry. Counters are kept. Loads in flight when Purge
// runs still return their value to their callers but do not store it, and
// later callers start a fresh load.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.generation++
	c.group = new(singleflight.Group)
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (c *Cache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok || !c.expired(e, now) {
			continue
		}
		c.lru.Remove(key)
		c.recordExpired()
		removed++
	}
	return removed
}

// GetOrLoad returns the cached value for key, or calls load, stores its result
// and returns it. Concurrent misses on the same key share one load call.
func (c *Cache[V]) GetOrLoad(key string, load func() V) (V, bool) {
	if value, ok := c.Get(key); ok {
		return value, true
	}

	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	v, _, _ := group.Do(key, func() (any, error) {
		// A concurrent caller may have stored it between Get and Do.
		if value, ok := c.Peek(key); ok {
			return value, nil
		}

		c.mu.Lock()
		generation := c.generation
		c.mu.Unlock()

		value := load()

		c.mu.Lock()
		if c.generation == generation {
			c.add(key, value, c.now())
		}
		c.mu.Unlock()
		return value, nil
	})
	return v.(V), false
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     c.lru.Len(),
		Capacity:    c.capacity,
		TTL:         c.ttl,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

func (c *Cache[V]) TTL() time.Duration { return c.ttl }

func (c *Cache[V]) Capacity() int { return c.capacity }

func (c *Cache[V]) expired(e entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) > c.ttl
}

func (c *Cache[V]) recordHit() {
	c.hits++
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *Cache[V]) recordMiss() {
	c.misses++
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}

func (c *Cache[V]) recordExpired() {
	c.expirations++
	if c.observer != nil {
		c.observer.CacheEvicted(ReasonExpired)
	}
}
