package principal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the cache reads through to on a miss.
// A concrete implementation lives in the storage package.
type Store interface {
	GetActivePolicy(principalID uuid.UUID) (*Policy, bool, error)
}

// cacheEntry pairs a cached policy with the time it expires.
type cacheEntry struct {
	policy    *Policy
	expiresAt time.Time
}

// PolicyCache is a short-TTL read-through cache in front of the policy
// store: policies are read far more often than they are written, so most
// validate/issue calls never touch the store at all. A write anywhere
// invalidates the affected principal's entry synchronously rather than
// waiting out the TTL, so a just-deactivated policy is never served stale.
type PolicyCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	store Store
	cache map[uuid.UUID]cacheEntry
}

// NewPolicyCache constructs a cache with the given TTL in front of store.
func NewPolicyCache(store Store, ttl time.Duration) *PolicyCache {
	return &PolicyCache{
		ttl:   ttl,
		store: store,
		cache: make(map[uuid.UUID]cacheEntry),
	}
}

// GetActivePolicy returns the principal's active policy, consulting the
// cache first and the underlying store on a miss or expiry.
func (c *PolicyCache) GetActivePolicy(principalID uuid.UUID) (*Policy, bool, error) {
	c.mu.RLock()
	entry, ok := c.cache[principalID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.policy, entry.policy != nil, nil
	}

	policy, found, err := c.store.GetActivePolicy(principalID)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	var cached *Policy
	if found {
		cached = policy
	}
	c.cache[principalID] = cacheEntry{policy: cached, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return policy, found, nil
}

// Invalidate drops any cached entry for principalID, called synchronously
// whenever SetPolicy writes a new active policy or deactivates the old one.
func (c *PolicyCache) Invalidate(principalID uuid.UUID) {
	c.mu.Lock()
	delete(c.cache, principalID)
	c.mu.Unlock()
}
