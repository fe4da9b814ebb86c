package catalog

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"promptforge/internal/models"
)

// CachedStore wraps a Store with a per-process TTL snapshot cache. Model and
// cost changes are rare administrative actions, so staleness of at most one
// TTL interval is acceptable; the cache is not read-your-own-writes
// consistent with administrative updates.
type CachedStore struct {
	inner Store
	cache *gocache.Cache
	ttl   time.Duration
}

// NewCachedStore constructs a caching decorator with the given TTL.
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

type missMarker struct{}

// LookupModel returns the cached descriptor, consulting the inner store on a
// cache miss. Negative lookups are cached too so an unknown model does not
// hit the store on every request.
func (c *CachedStore) LookupModel(modelID string) (models.ModelDescriptor, bool) {
	key := "model:" + modelID
	if cached, ok := c.cache.Get(key); ok {
		if _, miss := cached.(missMarker); miss {
			return models.ModelDescriptor{}, false
		}
		return cached.(models.ModelDescriptor), true
	}

	descriptor, ok := c.inner.LookupModel(modelID)
	if !ok {
		c.cache.Set(key, missMarker{}, c.ttl)
		return models.ModelDescriptor{}, false
	}
	c.cache.Set(key, descriptor, c.ttl)
	return descriptor, true
}

// DefaultModelForTier returns the cached tier default.
func (c *CachedStore) DefaultModelForTier(tier string) (string, bool) {
	key := "tier:" + tier
	if cached, ok := c.cache.Get(key); ok {
		if _, miss := cached.(missMarker); miss {
			return "", false
		}
		return cached.(string), true
	}

	modelID, ok := c.inner.DefaultModelForTier(tier)
	if !ok {
		c.cache.Set(key, missMarker{}, c.ttl)
		return "", false
	}
	c.cache.Set(key, modelID, c.ttl)
	return modelID, true
}

// Flush drops every cached entry, forcing fresh reads from the inner store.
func (c *CachedStore) Flush() {
	c.cache.Flush()
}
