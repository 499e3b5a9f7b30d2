package cache

import (
	"sync"
	"time"

	"github.com/use-agent/seekjobs/models"
)

// entry holds a cached listing record with its creation timestamp.
type entry struct {
	record    *models.ListingRecord
	createdAt time.Time
}

// Cache is an in-memory cache of extracted listing records keyed by
// listing id and description format. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour) until Close is called.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

func key(id, format string) string {
	return id + "|" + format
}

// Get retrieves a record extracted in format if it exists and is younger
// than maxAge. maxAge is in milliseconds. If maxAge <= 0, no cache lookup is
// performed.
func (c *Cache) Get(id, format string, maxAgeMs int) (*models.ListingRecord, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key(id, format)]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}

	rec := *e.record
	return &rec, true
}

// Set stores a record extracted in format. Failure records are never
// cached. If the cache is at capacity, a random entry is evicted to make
// room.
func (c *Cache) Set(format string, rec *models.ListingRecord) {
	if rec == nil || rec.Failed() || rec.JobID == "" {
		return
	}
	cp := *rec
	k := key(cp.JobID, format)

	c.mu.Lock()
	defer c.mu.Unlock()

	// map iteration order is random
	if _, exists := c.store[k]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[k] = &entry{
		record:    &cp,
		createdAt: c.now(),
	}
}

// Len reports the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) evictOlderThan(cutoff time.Time) {
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictOlderThan(c.now().Add(-1 * time.Hour))
		}
	}
}
