package validation

import (
	"strings"
	"sync"
)

// fingerprintCache remembers argument sequences that already passed
// validation, keyed by a cheap structural fingerprint. The mapping is
// bounded; the oldest entry is evicted when capacity is exceeded.
type fingerprintCache struct {
	capacity int
	entries  map[string]struct{}
	order    []string
	mu       sync.Mutex
}

func newFingerprintCache(capacity int) *fingerprintCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &fingerprintCache{
		capacity: capacity,
		entries:  make(map[string]struct{}, capacity),
	}
}

// fingerprint builds the structural key for an argument sequence. The
// unit separator cannot appear in sanitized arguments, so the join is
// collision-free for accepted inputs.
func fingerprint(args []string) string {
	return strings.Join(args, "\x1f")
}

// Seen reports whether the fingerprint was validated before.
func (c *fingerprintCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Add records a validated fingerprint, evicting the oldest entry when
// the cache is full.
func (c *fingerprintCache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = struct{}{}
	c.order = append(c.order, key)
}

// Len returns the number of cached fingerprints.
func (c *fingerprintCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
