// Package memory implements the domain cache interfaces in process, for
// single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

type entry struct {
	body       []byte
	expiration time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// ResponseCache is an in-memory domain.ResponseCache with per-entry TTL.
type ResponseCache struct {
	mu    sync.RWMutex
	items map[string]*entry
	now   func() time.Time
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{items: make(map[string]*entry), now: time.Now}
}

// Get returns a copy of the cached body, or domain.ErrNotFound.
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, domain.ErrNotFound
	}
	if item.expired(c.now()) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == item {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), item.body...), nil
}

// Set stores a copy of body. A non-positive ttl never expires.
func (c *ResponseCache) Set(_ context.Context, key string, body []byte, ttl time.Duration) error {
	var expiration time.Time
	if ttl > 0 {
		expiration = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &entry{body: append([]byte(nil), body...), expiration: expiration}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

var _ domain.ResponseCache = (*ResponseCache)(nil)
