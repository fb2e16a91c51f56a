package linkcheck

import (
	"sync"
	"time"
)

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache of page results keyed by the URI
// without its fragment. Expired entries are dropped lazily on Get.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewCache creates a cache whose entries live for ttl. A zero ttl disables
// caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns a copy of the cached result for the page of uri.
func (cache *Cache) Get(uri string) (Result, bool) {
	key := pageOf(uri)

	cache.mu.RLock()
	entry, ok := cache.entries[key]
	cache.mu.RUnlock()
	if !ok {
		return Result{}, false
	}

	if time.Now().After(entry.expiresAt) {
		cache.mu.Lock()
		if current, still := cache.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(cache.entries, key)
		}
		cache.mu.Unlock()
		return Result{}, false
	}

	return entry.result, true
}

// Set stores result for the page of uri.
func (cache *Cache) Set(uri string, result Result) {
	if cache.ttl <= 0 {
		return
	}
	cache.mu.Lock()
	cache.entries[pageOf(uri)] = cacheEntry{result: result, expiresAt: time.Now().Add(cache.ttl)}
	cache.mu.Unlock()
}

// Clear removes every entry.
func (cache *Cache) Clear() {
	cache.mu.Lock()
	cache.entries = make(map[string]cacheEntry)
	cache.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (cache *Cache) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.entries)
}

// Cleanup removes expired entries and returns how many were removed.
func (cache *Cache) Cleanup() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	removed := 0
	now := time.Now()
	for key, entry := range cache.entries {
		if now.After(entry.expiresAt) {
			delete(cache.entries, key)
			removed++
		}
	}
	return removed
}
