package router

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/advisorhub/mira/pkg/models"
)

// Intent cache defaults.
const (
	DefaultCacheTTL             = 5 * time.Minute
	DefaultCacheMaxSize         = 1000
	DefaultCacheCleanupInterval = time.Minute
)

type cacheEntry struct {
	value     models.IntentClassification
	timestamp time.Time
	element   *list.Element
}

// IntentCache is a thread-safe, TTL-bound, size-limited memo of
// classifications keyed by normalized message and UI location.
// Insertion order is tracked in a linked list so overflow evicts the
// oldest entries first.
type IntentCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a point-in-time snapshot of an IntentCache.
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	TTLMs   int64   `json:"ttlMs"`
	HitRate float64 `json:"hitRate"`
}

// NewIntentCache creates a cache and starts its background cleanup.
// Non-positive arguments fall back to the defaults.
func NewIntentCache(ttl time.Duration, maxSize int, cleanupInterval time.Duration) *IntentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCacheCleanupInterval
	}
	c := &IntentCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup(cleanupInterval)
	return c
}

// CacheKey builds the memo key for a message at a UI location.
func CacheKey(message string, miraCtx *models.MiraContext) string {
	norm := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	var module, page string
	if miraCtx != nil {
		module = string(miraCtx.Module)
		page = miraCtx.Page
	}
	return norm + "|" + module + "|" + page
}

// Get returns a copy of the cached classification if present and fresh.
func (c *IntentCache) Get(key string) (models.IntentClassification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.timestamp) >= c.ttl {
		c.misses.Add(1)
		return models.IntentClassification{}, false
	}
	c.hits.Add(1)
	return entry.value.Clone(), true
}

// Set stores a copy of v under key.
func (c *IntentCache) Set(key string, v models.IntentClassification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, exists := c.entries[key]; exists {
		entry.value = v.Clone()
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{value: v.Clone(), timestamp: now, element: elem}
}

// evictOldestLocked drops the oldest 10% of entries, at least one.
func (c *IntentCache) evictOldestLocked() {
	n := c.maxSize / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		front := c.order.Front()
		if front == nil {
			return
		}
		key, _ := front.Value.(string)
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// Len returns the number of stored entries, fresh or not.
func (c *IntentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports size, capacity, TTL and hit rate.
func (c *IntentCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Size:    c.Len(),
		MaxSize: c.maxSize,
		TTLMs:   c.ttl.Milliseconds(),
		HitRate: rate,
	}
}

func (c *IntentCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *IntentCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call more than once.
func (c *IntentCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
