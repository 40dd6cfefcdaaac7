// Package cache provides the bounded, time-expiring result cache that backs
// the optimization dispatcher. Eviction is recency-ordered, expiry is checked
// lazily on access, and concurrent misses for the same key are collapsed into
// a single computation.
package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Size      int    `json:"size"`
	Evictions uint64 `json:"evictions"`
}

// entry is a resident cache entry. Owned exclusively by the cache; never
// handed out by reference.
type entry struct {
	key        string
	value      model.OptimizationResult
	insertedAt time.Time
	hitCount   int
}

// ResultCache is a concurrency-safe LRU cache of optimization results with
// per-entry TTL expiry. Eviction happens before insert, so the cache never
// holds more than maxSize entries. GetOrCompute collapses concurrent misses
// on the same key into one computation (single-flight).
type ResultCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	clock   clock.PassiveClock

	order *list.List // front = most recently touched
	items map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64

	group singleflight.Group
}

// New creates a ResultCache with the given capacity and TTL, reading time
// from clk.
func New(maxSize int, ttl time.Duration, clk clock.PassiveClock) *ResultCache {
	return &ResultCache{
		maxSize: maxSize,
		ttl:     ttl,
		clock:   clk,
		order:   list.New(),
		items:   make(map[string]*list.Element, maxSize),
	}
}

// Get returns the cached result for key. An expired entry is deleted and
// counted as a miss. A hit touches the entry's recency.
func (c *ResultCache) Get(key string) (model.OptimizationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return model.OptimizationResult{}, false
	}

	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeElement(el)
		c.misses++
		return model.OptimizationResult{}, false
	}

	c.order.MoveToFront(el)
	e.hitCount++
	c.hits++
	return e.value, true
}

// Set inserts or replaces the result for key. When a new key would exceed
// capacity, the least-recently-touched entry is evicted first.
func (c *ResultCache) Set(key string, value model.OptimizationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = c.clock.Now()
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}

	el := c.order.PushFront(&entry{
		key:        key,
		value:      value,
		insertedAt: c.clock.Now(),
	})
	c.items[key] = el
}

// Has reports whether a non-expired entry exists for key. It does not count
// toward hit/miss stats and does not touch recency, but an expired entry
// found here is deleted.
func (c *ResultCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.expired(el.Value.(*entry)) {
		c.removeElement(el)
		return false
	}
	return true
}

// Delete removes key from the cache. No-op if absent.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes all entries. Counters are preserved.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element, c.maxSize)
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      c.order.Len(),
		Evictions: c.evictions,
	}
}

// GetOrCompute returns the cached result for key, or runs compute exactly
// once across concurrent callers for a cold key, caching and sharing its
// result. The boolean reports whether the value came from cache. A compute
// error is returned to every waiting caller and nothing is cached.
func (c *ResultCache) GetOrCompute(key string, compute func() (model.OptimizationResult, error)) (model.OptimizationResult, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have stored the
		// value between our miss and acquiring the flight.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		result, err := compute()
		if err != nil {
			return model.OptimizationResult{}, err
		}
		c.Set(key, result)
		return result, nil
	})
	if err != nil {
		return model.OptimizationResult{}, false, err
	}
	return v.(model.OptimizationResult), false, nil
}

// expired reports whether e is past its TTL. Callers hold c.mu.
func (c *ResultCache) expired(e *entry) bool {
	return c.clock.Now().Sub(e.insertedAt) > c.ttl
}

// removeElement unlinks an entry. Callers hold c.mu.
func (c *ResultCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
