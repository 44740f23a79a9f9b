package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CacheEntry represents a cached expansion result
type CacheEntry struct {
	Occurrences []Occurrence
	ExpiresAt   time.Time
	AccessedAt  time.Time
}

// Cache keeps expansion results of recently requested series. Expired
// entries are dropped lazily on access and when the cache overflows.
type Cache struct {
	entries    map[string]*CacheEntry
	mutex      sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits   int
	misses int
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL        time.Duration // How long entries stay valid
	MaxEntries int           // Maximum number of entries before eviction
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

// NewCache creates a new recurrence cache with the given configuration
func NewCache(config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	return &Cache{
		entries:    make(map[string]*CacheEntry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		now:        time.Now,
	}
}

func cacheKey(masterStart, masterEnd time.Time, series Series, rangeStart, rangeEnd time.Time) string {
	hasher := sha256.New()

	for _, t := range []time.Time{masterStart, masterEnd, rangeStart, rangeEnd} {
		hasher.Write([]byte(t.Format(time.RFC3339Nano)))
		hasher.Write([]byte(t.Location().String()))
	}
	hasher.Write([]byte(series.Rule))

	hasher.Write([]byte("R"))
	for _, rdate := range series.Dates {
		hasher.Write([]byte(rdate.Format(time.RFC3339Nano)))
	}
	hasher.Write([]byte("X"))
	for _, exdate := range series.Exceptions {
		hasher.Write([]byte(exdate.Format(time.RFC3339Nano)))
	}
	if series.RecurrenceID != nil {
		hasher.Write([]byte(series.RecurrenceID.Format(time.RFC3339Nano)))
	}

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *Cache) Get(masterStart, masterEnd time.Time, series Series, rangeStart, rangeEnd time.Time) ([]Occurrence, bool) {
	key := cacheKey(masterStart, masterEnd, series, rangeStart, rangeEnd)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.AccessedAt = now
	c.hits++
	return append([]Occurrence(nil), entry.Occurrences...), true
}

// Set stores a result in the cache
func (c *Cache) Set(masterStart, masterEnd time.Time, series Series, rangeStart, rangeEnd time.Time, occurrences []Occurrence) {
	key := cacheKey(masterStart, masterEnd, series, rangeStart, rangeEnd)
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Occurrences: append([]Occurrence(nil), occurrences...),
		ExpiresAt:   now.Add(c.ttl),
		AccessedAt:  now,
	}

	if len(c.entries) > c.maxEntries {
		c.evict(now)
	}
}

// evict removes expired entries, then the least recently accessed ones
// until the cache fits. Callers hold the mutex.
func (c *Cache) evict(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].AccessedAt.Before(c.entries[keys[j]].AccessedAt)
	})

	for _, key := range keys[:len(keys)-c.maxEntries] {
		delete(c.entries, key)
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
