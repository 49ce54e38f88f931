// Package cache stores aggregated datasets per tenant. Entries are keyed
// by the tenant's domain plus the canonicalized filter set, so two tenants
// with identical filters can never share an entry.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/analytics"
)

const janitorInterval = 5 * time.Minute

type entry struct {
	payload     *analytics.Dataset
	createdAt   time.Time
	expiresAt   time.Time
	accessCount int
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// bucket holds one tenant's entries. The hit/miss counters live behind the
// same mutex as the entries, so stats always agree with observed behavior.
type bucket struct {
	mu      sync.Mutex
	entries map[string]*entry
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// Stats is a point-in-time view of one tenant's cache.
type Stats struct {
	Domain      string     `json:"domain"`
	Entries     int        `json:"entries"`
	Hits        int64      `json:"hits"`
	Misses      int64      `json:"misses"`
	Sets        int64      `json:"sets"`
	Deletes     int64      `json:"deletes"`
	HitRate     float64    `json:"hit_rate_percent"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry *time.Time `json:"newest_entry,omitempty"`
}

// Cache is the process-wide dataset cache. Buckets are created on first
// use and never shared between tenants.
type Cache struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	logger  *zap.Logger
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

func New(logger *zap.Logger) *Cache {
	c := &Cache{
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) bucket(domain string) *bucket {
	c.mu.RLock()
	b, ok := c.buckets[domain]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok = c.buckets[domain]; ok {
		return b
	}
	b = &bucket{entries: make(map[string]*entry)}
	c.buckets[domain] = b
	return b
}

// Get returns the cached dataset for a tenant and filter key. Expired
// entries are removed lazily and count as misses.
func (c *Cache) Get(domain, filterKey string) (*analytics.Dataset, bool) {
	b := c.bucket(domain)

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[filterKey]
	if !ok {
		b.misses++
		return nil, false
	}
	if e.expired(c.now()) {
		delete(b.entries, filterKey)
		b.misses++
		return nil, false
	}
	e.accessCount++
	b.hits++
	return e.payload, true
}

// Put stores a dataset with the tenant's TTL captured at creation time.
// A zero or negative TTL disables caching for the entry.
func (c *Cache) Put(domain, filterKey string, payload *analytics.Dataset, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	b := c.bucket(domain)
	now := c.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[filterKey] = &entry{
		payload:   payload,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	b.sets++
}

// InvalidateDomain drops every entry belonging to one tenant and returns
// the number removed. Entries of other tenants are untouched by
// construction, since each tenant owns its bucket.
func (c *Cache) InvalidateDomain(domain string) int {
	b := c.bucket(domain)

	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = make(map[string]*entry)
	b.deletes += int64(n)
	return n
}

// InvalidateAll clears the entire cache across all tenants.
func (c *Cache) InvalidateAll() int {
	c.mu.RLock()
	domains := make([]string, 0, len(c.buckets))
	for domain := range c.buckets {
		domains = append(domains, domain)
	}
	c.mu.RUnlock()

	total := 0
	for _, domain := range domains {
		total += c.InvalidateDomain(domain)
	}
	if c.logger != nil {
		c.logger.Info("cache cleared", zap.Int("entries", total))
	}
	return total
}

// Stats reports counters and entry ages for one tenant.
func (c *Cache) Stats(domain string) Stats {
	b := c.bucket(domain)

	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Domain:  domain,
		Entries: len(b.entries),
		Hits:    b.hits,
		Misses:  b.misses,
		Sets:    b.sets,
		Deletes: b.deletes,
	}
	if total := b.hits + b.misses; total > 0 {
		s.HitRate = float64(b.hits) / float64(total) * 100
	}
	for _, e := range b.entries {
		created := e.createdAt
		if s.OldestEntry == nil || created.Before(*s.OldestEntry) {
			t := created
			s.OldestEntry = &t
		}
		if s.NewestEntry == nil || created.After(*s.NewestEntry) {
			t := created
			s.NewestEntry = &t
		}
	}
	return s
}

// AllStats reports counters for every tenant that has touched the cache.
func (c *Cache) AllStats() map[string]Stats {
	c.mu.RLock()
	domains := make([]string, 0, len(c.buckets))
	for domain := range c.buckets {
		domains = append(domains, domain)
	}
	c.mu.RUnlock()

	out := make(map[string]Stats, len(domains))
	for _, domain := range domains {
		out[domain] = c.Stats(domain)
	}
	return out
}

// Entries returns the total number of live entries for one tenant.
func (c *Cache) Entries(domain string) int {
	b := c.bucket(domain)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// janitor evicts expired entries periodically so long-idle tenants do not
// pin memory; correctness relies only on the lazy check in Get.
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.RLock()
	buckets := make([]*bucket, 0, len(c.buckets))
	for _, b := range c.buckets {
		buckets = append(buckets, b)
	}
	c.mu.RUnlock()

	now := c.now()
	removed := 0
	for _, b := range buckets {
		b.mu.Lock()
		for key, e := range b.entries {
			if e.expired(now) {
				delete(b.entries, key)
				b.deletes++
				removed++
			}
		}
		b.mu.Unlock()
	}
	if removed > 0 && c.logger != nil {
		c.logger.Debug("cache sweep", zap.Int("expired", removed))
	}
}
