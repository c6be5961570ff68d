package geocode

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// CacheObserver is notified of cache hits and misses.
type CacheObserver interface {
	CacheResult(hit bool)
}

// CachedLookup wraps a Lookuper with an in-memory LRU. Only found results
// are cached so empty answers and failures are asked again next time.
type CachedLookup struct {
	inner    Lookuper
	observer CacheObserver

	mu         sync.Mutex
	maxEntries int
	order      *list.List
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key    string
	coords Coordinates
}

// NewCachedLookup creates a cache decorator holding at most maxEntries
// queries. observer may be nil.
func NewCachedLookup(inner Lookuper, maxEntries int, observer CacheObserver) *CachedLookup {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &CachedLookup{
		inner:      inner,
		observer:   observer,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Lookup answers from the cache when possible. Cache hits are marked so the
// caller knows no upstream request was made.
func (c *CachedLookup) Lookup(ctx context.Context, query string) Result {
	key := cacheKey(query)
	if key == "" {
		return c.inner.Lookup(ctx, query)
	}

	if coords, ok := c.get(key); ok {
		c.observe(true)
		return Result{Coordinates: &coords, Outcome: OutcomeFound, Cached: true}
	}
	c.observe(false)

	res := c.inner.Lookup(ctx, query)
	if res.Found() {
		c.put(key, *res.Coordinates)
	}
	return res
}

// Len returns the number of cached queries.
func (c *CachedLookup) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedLookup) observe(hit bool) {
	if c.observer != nil {
		c.observer.CacheResult(hit)
	}
}

func (c *CachedLookup) get(key string) (Coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Coordinates{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).coords, true
}

func (c *CachedLookup) put(key string, coords Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).coords = coords
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, coords: coords})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
