// Package cache is a small TTL cache with JSON serialization, used to avoid
// re-fetching Jira issues and connection records on every turn.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Set serializes the value and stores it under key for the cache TTL.
func (c *Cache) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize cache value: %w", err)
	}
	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Get deserializes the cached value into out. Expired entries are treated
// as absent and dropped.
func (c *Cache) Get(key string, out any) (bool, error) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	if ok && c.now().After(cached.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(cached.data, out); err != nil {
		return false, fmt.Errorf("deserialize cache value: %w", err)
	}
	return true, nil
}

// Delete drops a key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops expired entries at the given interval until ctx ends.
func (c *Cache) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Cache) sweepOnce() {
	now := c.now()
	c.mu.Lock()
	for key, cached := range c.entries {
		if now.After(cached.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
