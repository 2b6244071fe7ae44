package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	hits, misses         int
	capacity, expiration int
}

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }
func (o *countingObserver) CacheEvicted(reason EvictReason) {
	switch reason {
	case ReasonCapacity:
		o.capacity++
	case ReasonExpired:
		o.expiration++
	}
}

func mustNew(t *testing.T, capacity int, ttl time.Duration, opts ...Option) *Cache[string] {
	t.Helper()
	c, err := New[string](capacity, ttl, opts...)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return c
}

func TestNew_InvalidArguments(t *testing.T) {
	if _, err := New[int](0, time.Hour); err != ErrInvalidCapacity {
		t.Errorf("Expected ErrInvalidCapacity, got %v", err)
	}
	if _, err := New[int](10, 0); err != ErrInvalidTTL {
		t.Errorf("Expected ErrInvalidTTL, got %v", err)
	}
}

func TestCache_AddGet(t *testing.T) {
	c := mustNew(t, 10, time.Hour)

	if _, ok := c.Get("8.8.8.8"); ok {
		t.Error("Expected miss on empty cache")
	}
	c.Add("8.8.8.8", "google")
	v, ok := c.Get("8.8.8.8")
	if !ok || v != "google" {
		t.Errorf("Expected hit with 'google', got '%s' (ok=%v)", v, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d hits and %d misses", stats.Hits, stats.Misses)
	}
	if stats.HitRatio() != 0.5 {
		t.Errorf("Expected hit ratio 0.5, got %f", stats.HitRatio())
	}
}

func TestCache_KeysAreNotNormalized(t *testing.T) {
	c := mustNew(t, 10, time.Hour)
	c.Add("2001:db8::1", "short")

	if _, ok := c.Get("2001:0db8:0000:0000:0000:0000:0000:0001"); ok {
		t.Error("Expected textually different key to miss")
	}
}

func TestCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 50000
	obs := &countingObserver{}
	c := mustNew(t, capacity, time.Hour, WithObserver(obs))

	for i := 0; i < capacity; i++ {
		c.Add(fmt.Sprintf("key-%d", i), "v")
	}
	if c.Len() != capacity {
		t.Fatalf("Expected %d entries, got %d", capacity, c.Len())
	}

	// Touch the oldest so the second-oldest becomes the eviction candidate.
	if _, ok := c.Get("key-0"); !ok {
		t.Fatal("Expected key-0 to be cached")
	}

	c.Add("one-more", "v")

	if c.Len() != capacity {
		t.Errorf("Expected size to stay at %d, got %d", capacity, c.Len())
	}
	if _, ok := c.Peek("key-1"); ok {
		t.Error("Expected key-1 to be evicted")
	}
	if _, ok := c.Peek("key-0"); !ok {
		t.Error("Expected recently read key-0 to survive")
	}
	if _, ok := c.Peek("one-more"); !ok {
		t.Error("Expected newest entry to be present")
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("Expected exactly 1 eviction, got %d", stats.Evictions)
	}
	if obs.capacity != 1 {
		t.Errorf("Expected observer to see 1 capacity eviction, got %d", obs.capacity)
	}
}

func TestCache_ReplaceDoesNotEvict(t *testing.T) {
	c := mustNew(t, 2, time.Hour)
	c.Add("a", "1")
	c.Add("b", "2")
	c.Add("a", "3")

	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
	if v, _ := c.Get("a"); v != "3" {
		t.Errorf("Expected replaced value '3', got '%s'", v)
	}
	if c.Stats().Evictions != 0 {
		t.Errorf("Expected no evictions, got %d", c.Stats().Evictions)
	}
}

func TestCache_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	obs := &countingObserver{}
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now), WithObserver(obs))

	c.Add("1.1.1.1", "cloudflare")

	clock.Advance(time.Hour - time.Millisecond)
	if _, ok := c.Get("1.1.1.1"); !ok {
		t.Error("Expected entry to be live just before the ttl")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("1.1.1.1"); !ok {
		t.Error("Expected entry to be live exactly at the ttl")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("1.1.1.1"); ok {
		t.Error("Expected entry to be expired just after the ttl")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed on read, got %d entries", c.Len())
	}
	if obs.expiration != 1 {
		t.Errorf("Expected 1 expiration, got %d", obs.expiration)
	}
}

func TestCache_ReadDoesNotExtendTTL(t *testing.T) {
	clock := newFakeClock()
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now))

	c.Add("k", "v")
	clock.Advance(50 * time.Minute)
	c.Get("k")
	clock.Advance(11 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("Expected read not to extend the lifetime")
	}
}

func TestCache_AddRestartsTTL(t *testing.T) {
	clock := newFakeClock()
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now))

	c.Add("k", "v1")
	clock.Advance(50 * time.Minute)
	c.Add("k", "v2")
	clock.Advance(50 * time.Minute)

	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Errorf("Expected re-added entry to be live with 'v2', got '%s' (ok=%v)", v, ok)
	}
}

func TestCache_AddAt(t *testing.T) {
	clock := newFakeClock()
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now))

	if !c.AddAt("fresh", "v", clock.Now().Add(-30*time.Minute)) {
		t.Error("Expected half-aged entry to be stored")
	}
	if c.AddAt("stale", "v", clock.Now().Add(-2*time.Hour)) {
		t.Error("Expected stale entry to be rejected")
	}

	clock.Advance(31 * time.Minute)
	if _, ok := c.Get("fresh"); ok {
		t.Error("Expected entry to expire relative to its original insertion time")
	}
}

func TestCache_PurgeExpired(t *testing.T) {
	clock := newFakeClock()
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now))

	c.Add("old-1", "v")
	c.Add("old-2", "v")
	clock.Advance(40 * time.Minute)
	c.Add("new", "v")
	clock.Advance(21 * time.Minute)

	if removed := c.PurgeExpired(); removed != 2 {
		t.Errorf("Expected 2 expired entries removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", c.Len())
	}
	if c.Stats().Expirations != 2 {
		t.Errorf("Expected 2 expirations, got %d", c.Stats().Expirations)
	}
}

func TestCache_PurgeAndRemove(t *testing.T) {
	c := mustNew(t, 10, time.Hour)
	c.Add("a", "1")
	c.Add("b", "2")

	if !c.Remove("a") {
		t.Error("Expected Remove to report an existing key")
	}
	if c.Remove("a") {
		t.Error("Expected second Remove to report nothing")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after purge, got %d", c.Len())
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := mustNew(t, 10, time.Hour)
	calls := 0
	load := func() string {
		calls++
		return "loaded"
	}

	v, hit := c.GetOrLoad("k", load)
	if hit || v != "loaded" {
		t.Errorf("Expected miss with 'loaded', got '%s' (hit=%v)", v, hit)
	}
	v, hit = c.GetOrLoad("k", load)
	if !hit || v != "loaded" {
		t.Errorf("Expected hit with 'loaded', got '%s' (hit=%v)", v, hit)
	}
	if calls != 1 {
		t.Errorf("Expected load to run once, got %d", calls)
	}
}

func TestCache_GetOrLoadConcurrentMissesShareLoad(t *testing.T) {
	c := mustNew(t, 10, time.Hour)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func() string {
		calls.Add(1)
		<-release
		return "v"
	}

	const workers = 16
	var started, done sync.WaitGroup
	started.Add(workers)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			if v, _ := c.GetOrLoad("same", load); v != "v" {
				t.Errorf("Expected 'v', got '%s'", v)
			}
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if n := calls.Load(); n < 1 || n > 2 {
		t.Errorf("Expected concurrent misses to share the load, got %d calls", n)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := mustNew(t, 100, time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("10.0.%d.%d", w, i%250)
				c.Add(key, key)
				if v, ok := c.Get(key); ok && v != key {
					t.Errorf("Expected '%s', got '%s'", key, v)
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Expected at most 100 entries, got %d", c.Len())
	}
}

func TestJanitor_RunOnce(t *testing.T) {
	clock := newFakeClock()
	c := mustNew(t, 10, time.Hour, WithClock(clock.Now))
	c.Add("k", "v")
	clock.Advance(2 * time.Hour)

	j := NewJanitor(c, time.Minute, pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace))
	if removed := j.RunOnce(); removed != 1 {
		t.Errorf("Expected 1 entry removed, got %d", removed)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	c := mustNew(t, 10, time.Hour)
	j := NewJanitor(c, 10*time.Millisecond, pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace))
	j.Start()
	time.Sleep(25 * time.Millisecond)
	j.Stop()
	j.Stop()

	disabled := NewJanitor(c, 0, pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace))
	disabled.Start()
	disabled.Stop()
}

func TestCache_PurgeDuringLoadDiscardsResult(t *testing.T) {
	c := mustNew(t, 10, time.Hour)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)
	go func() {
		v, _ := c.GetOrLoad("k", func() string {
			close(entered)
			<-release
			return "before-purge"
		})
		done <- v
	}()

	<-entered
	c.Purge()
	close(release)

	if v := <-done; v != "before-purge" {
		t.Errorf("Expected in-flight caller to get its value, got '%s'", v)
	}
	if _, ok := c.Peek("k"); ok {
		t.Error("Expected value loaded before the purge not to be stored")
	}

	v, hit := c.GetOrLoad("k", func() string { return "after-purge" })
	if hit || v != "after-purge" {
		t.Errorf("Expected a fresh load after purge, got '%s' (hit=%v)", v, hit)
	}
}

func TestCache_PurgeStartsNewLoadForLaterCallers(t *testing.T) {
	c := mustNew(t, 10, time.Hour)

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go c.GetOrLoad("k", func() string {
		close(entered)
		<-release
		return "stale"
	})

	<-entered
	c.Purge()

	// Must not join the blocked load started before the purge.
	v, _ := c.GetOrLoad("k", func() string { return "fresh" })
	if v != "fresh" {
		t.Errorf("Expected 'fresh' from a new load, got '%s'", v)
	}
}
