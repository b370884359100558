package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// Cache provides in-memory caching of search pages with TTL and request collapsing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
	done    chan struct{}
	once    sync.Once

	flightsMu sync.Mutex
	flights   map[string]*flight
}

// flight is the shared fetch for one key. Its context is cancelled once
// every caller waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type cacheEntry struct {
	result    *types.PaginatedResult
	expiresAt time.Time
}

// NewCache creates a new Cache with the specified TTL.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
		flights: make(map[string]*flight),
	}

	// Start background cleanup
	go c.cleanup()

	return c
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

// Key builds a canonical cache key from a prepared query.
// Location is case-folded; every other field is significant.
func (c *Cache) Key(q types.SearchQuery) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%d",
		strings.ToLower(strings.TrimSpace(q.Location)),
		q.CheckIn,
		q.CheckOut,
		q.Guests,
		q.Cursor,
		q.Limit,
	)
}

// GetOrFetch retrieves from cache or executes the fetch function.
//
// Concurrent misses for the same key share a single fetch. The fetch is not
// tied to any one caller: it keeps running while at least one caller waits
// for it and is cancelled when the last one gives up. Returns the result and
// whether it was a cache hit.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (*types.PaginatedResult, error)) (*types.PaginatedResult, bool, error) {
	if result, ok := c.get(key); ok {
		return result, true, nil
	}

	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		result, err := fetch(f.ctx)
		if err == nil && result != nil && c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = &cacheEntry{
				result:    result,
				expiresAt: c.now().Add(c.ttl),
			}
			c.mu.Unlock()
		}
		return result, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		result, _ := res.Val.(*types.PaginatedResult)
		return result, false, nil
	case <-ctx.Done():
		return nil, false, context.Cause(ctx)
	}
}

// join registers the caller on the flight for key, starting one if needed.
func (c *Cache) join(ctx context.Context, key string) *flight {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops the caller from f. The last caller out cancels the fetch and
// forgets it, so a later miss starts a fresh one.
func (c *Cache) leave(key string, f *flight) {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

func (c *Cache) get(key string) (*types.PaginatedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

// Invalidate removes a specific key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanup periodically removes expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
