package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

var _ ports.Cache = (*Cache)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a process-local ports.Cache. It is best-effort: contents are lost
// on restart and are not shared between instances.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	writes  int
	now     func() time.Time
}

// sweepEvery is the number of writes between full expiry sweeps.
const sweepEvery = 256

// NewCache creates an empty in-memory cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (c *Cache) WithClock(clock func() time.Time) *Cache {
	if clock != nil {
		c.now = clock
	}
	return c
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	c.afterWriteLocked()
	return nil
}

func (c *Cache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !e.expired(c.now()) {
		return false, nil
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	c.afterWriteLocked()
	return true, nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	delete(c.entries, key)
	return !e.expired(c.now()), nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// afterWriteLocked sweeps once every sweepEvery writes; Get already drops
// expired entries it touches.
func (c *Cache) afterWriteLocked() {
	c.writes++
	if c.writes%sweepEvery == 0 {
		c.sweepLocked()
	}
}

// sweepLocked drops expired entries so abandoned codes do not accumulate.
func (c *Cache) sweepLocked() {
	now := c.now()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}
