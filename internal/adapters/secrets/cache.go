package secrets

import (
	"sync"
	"time"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// secretCache is a per-instance in-memory TTL cache shared by all backends
type secretCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	secret    *ports.Secret
	expiresAt time.Time
}

// newSecretCache returns a cache; a non-positive ttl disables caching
func newSecretCache(ttl time.Duration) *secretCache {
	return &secretCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *secretCache) get(key string) *ports.Secret {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}

	return entry.secret
}

func (c *secretCache) set(key string, secret *ports.Secret) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		secret:    secret,
		expiresAt: c.now().Add(c.ttl),
	}
}
