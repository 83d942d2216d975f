// Package properties implements the Gateway's read-through cache of named
// GatewayProperty values (banners, UI assets) pulled from the World (§4.7).
// Adopted from 1kaius1-MUD-Engine's own (never-wired) Redis configuration
// surface and roadmap entry "implement session caching in Redis" — this
// repo actually wires go-redis, falling back to an in-memory map when no
// Redis address is configured.
package properties

import (
	"context"
	"sync"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// entry is one cached value with its own expiry, so a slow-changing banner
// and a fast-changing one can share a cache without fate-sharing TTLs.
type entry struct {
	value     string
	expiresAt time.Time
}

// Puller is how the Cache refreshes itself from the World — implemented by
// an rpcclient.Client wrapper that issues GatewayManagement.gateway_properties.
type Puller interface {
	PullProperties(ctx context.Context, keys []string) (map[string]string, error)
}

// Cache is the Gateway's TTL-bounded property cache (§4.7). Guarded by an
// RWMutex per the fixed pool→store→cache lock order (§5) — callers that
// also hold the pool or session store lock must acquire those first.
type Cache struct {
	ttl     time.Duration
	puller  Puller
	backing Backing

	mu      sync.RWMutex
	entries map[string]entry
}

// Backing is the optional shared store (Redis) mirroring the in-process
// cache so multiple Gateway processes observe the same banners. A nil
// Backing means in-memory only.
type Backing interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// DefaultKeys are the fixed property set the Gateway pulls after every
// (re)authentication (§4.7, and the banner set from
// original_source/gateway/src/banner.rs).
var DefaultKeys = []string{"banner.welcome", "banner.motd", "banner.login", "banner.logout"}

// New returns a Cache with the given TTL, refreshed from puller, optionally
// mirrored through backing.
func New(ttl time.Duration, puller Puller, backing Backing) *Cache {
	return &Cache{ttl: ttl, puller: puller, backing: backing, entries: make(map[string]entry)}
}

// Get returns a cached value, or wyerr.NotFound if it's missing or expired
// and no refresh has happened yet (§4.7: "misses return an explicit
// 'not found' error").
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		return e.value, nil
	}

	if c.backing != nil {
		if v, ok := c.backing.Get(ctx, key); ok {
			c.mu.Lock()
			c.entries[key] = entry{value: v, expiresAt: time.Now().Add(c.ttl)}
			c.mu.Unlock()
			return v, nil
		}
	}

	return "", wyerr.NotFound
}

// Refresh pulls the given keys from the World and repopulates the cache,
// invoked after every (re)authentication and on the TTL (§4.7).
func (c *Cache) Refresh(ctx context.Context, keys []string) error {
	values, err := c.puller.PullProperties(ctx, keys)
	if err != nil {
		return err
	}

	c.mu.Lock()
	now := time.Now()
	for k, v := range values {
		c.entries[k] = entry{value: v, expiresAt: now.Add(c.ttl)}
	}
	c.mu.Unlock()

	if c.backing != nil {
		for k, v := range values {
			c.backing.Set(ctx, k, v, c.ttl)
		}
	}
	return nil
}

// RunRefreshLoop populates the cache once immediately — so a banner is
// available on a cold start rather than only after the first TTL tick — and
// then periodically calls Refresh(DefaultKeys) until ctx is cancelled — one
// of the Gateway's supervised loops (§5: "one properties-refresh loop").
func (c *Cache) RunRefreshLoop(ctx context.Context) error {
	// The World may not be reachable yet at startup; the rpc client's
	// on-connected hook and the next tick will retry if this fails.
	_ = c.Refresh(ctx, DefaultKeys)

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = c.Refresh(ctx, DefaultKeys)
		}
	}
}
