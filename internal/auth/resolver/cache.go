package resolver

import (
	"sync"
	"time"

	id "fitgate/pkg/domain"
)

type entryKind int

const (
	kindTenant entryKind = iota
	kindUser
	kindClient
)

type cacheKey struct {
	tenant id.TenantID
	kind   entryKind
	id     string
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ttlCache holds tenant and principal records for a bounded time.
// Revocation state is never stored here.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[cacheKey]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ttlCache) get(key cacheKey) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *ttlCache) set(key cacheKey, value any) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.cleanupExpiredLocked(10)
}

// invalidateTenant drops every entry belonging to the tenant.
func (c *ttlCache) invalidateTenant(tenantID id.TenantID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.tenant == tenantID {
			delete(c.entries, key)
		}
	}
}

// cleanupExpiredLocked removes up to maxCleanup expired entries.
func (c *ttlCache) cleanupExpiredLocked(maxCleanup int) {
	now := c.now()
	cleaned := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			cleaned++
			if cleaned >= maxCleanup {
				break
			}
		}
	}
}
