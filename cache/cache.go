// Package cache provides the process-local TTL cache that sits in front of the
// GitHub API. It is the only caching layer; upstream requests are always
// revalidated.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long an entry is served before it is treated as absent.
const DefaultTTL = 5 * time.Minute

// Cache is the key/value store the content domains are constructed with.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Lookup fetches key from c and asserts it to T. A value of the wrong type is
// reported as a miss.
func Lookup[T any](c Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

type entry struct {
	data      any
	timestamp time.Time
}

// TTL is a concurrency-safe in-memory Cache whose entries expire a fixed
// duration after they were last set. Expired entries are removed lazily on
// read, or by Sweep.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

var _ Cache = (*TTL)(nil)

// Option configures a TTL cache.
type Option func(*TTL)

// WithTTL sets the entry lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *TTL) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTL) {
		c.now = now
	}
}

// New creates an empty TTL cache.
func New(opts ...Option) *TTL {
	c := &TTL{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key. An entry whose age is at least the TTL is
// deleted and reported as absent.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

// Set stores value under key, overwriting any previous entry and resetting
// its timestamp.
func (c *TTL) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{data: value, timestamp: c.now()}
}

// Purge removes every entry and returns how many were dropped.
func (c *TTL) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Sweep evicts all expired entries and returns how many were removed.
func (c *TTL) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
