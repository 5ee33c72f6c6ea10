// Package cache is the resilient key-value layer in front of the credential
// store. It prefers an external Redis instance, but after a bounded number of
// failed connection attempts it downgrades permanently to an in-process
// store with identical TTL semantics. Callers never see which backend is
// active and never receive errors: a cache outage degrades to misses, it
// must not fail a login.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"agriconnect.org/internal/obs"
)

const (
	// Connection retry budget, mirrored by the per-operation consecutive
	// failure budget that triggers the permanent downgrade.
	maxRetries     = 3
	backoffStep    = 200 * time.Millisecond
	backoffCeiling = 3 * time.Second
)

var errMiss = errors.New("cache: miss")

// store is the backing-store contract shared by Redis and the in-process map.
type store interface {
	get(ctx context.Context, key string) (string, error)
	set(ctx context.Context, key, value string, ttl time.Duration) error
	del(ctx context.Context, key string) error
}

// Config carries the external cache connection parameters.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// Cache fronts the active backing store. The store reference is swapped at
// most once (external to in-process) and the swap is atomic: no operation
// observes a half-swapped state.
type Cache struct {
	active   atomic.Pointer[store]
	fallback *memoryStore
	failures atomic.Int32
	degraded atomic.Bool
}

// Connect builds a Cache. With an empty Addr, or when the external cache
// cannot be reached within the retry budget, the returned Cache starts on
// the in-process store. Connect never fails.
func Connect(ctx context.Context, cfg Config) *Cache {
	c := &Cache{fallback: newMemoryStore()}

	if cfg.Addr == "" {
		c.downgrade("no external cache configured")
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		// go-redis retries individual commands itself; the budget here is
		// for the initial reachability probe.
		MaxRetries: maxRetries,
	})

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := client.Ping(ctx).Err(); err == nil {
			ext := store(&redisStore{client: client})
			c.active.Store(&ext)
			obs.LogRequest(map[string]any{
				"ts": time.Now().UTC().Format(time.RFC3339), "level": "info",
				"msg": "cache_connected", "addr": cfg.Addr,
			})
			return c
		} else if attempt == maxRetries {
			obs.LogRequest(map[string]any{
				"ts": time.Now().UTC().Format(time.RFC3339), "level": "warn",
				"msg": "cache_connect_failed", "addr": cfg.Addr, "error": err.Error(),
			})
		}
		backoff := backoffStep * time.Duration(attempt)
		if backoff > backoffCeiling {
			backoff = backoffCeiling
		}
		select {
		case <-ctx.Done():
			c.downgrade("connect cancelled")
			_ = client.Close()
			return c
		case <-time.After(backoff):
		}
	}

	_ = client.Close()
	c.downgrade("retry budget exhausted")
	return c
}

// Degraded reports whether the cache has switched to the in-process store.
// The switch is one-directional; recovering the external cache requires a
// process restart.
func (c *Cache) Degraded() bool {
	return c.degraded.Load()
}

func (c *Cache) downgrade(reason string) {
	if c.degraded.Swap(true) {
		return
	}
	fb := store(c.fallback)
	c.active.Store(&fb)
	obs.LogRequest(map[string]any{
		"ts": time.Now().UTC().Format(time.RFC3339), "level": "warn",
		"msg": "cache_degraded", "reason": reason,
	})
}

func (c *Cache) backend() store {
	if p := c.active.Load(); p != nil {
		return *p
	}
	return c.fallback
}

// noteFailure records a connection-level failure on the external store and
// downgrades permanently once the budget is spent.
func (c *Cache) noteFailure(err error) {
	if c.degraded.Load() {
		return
	}
	if c.failures.Add(1) >= maxRetries {
		c.downgrade("sustained outage: " + err.Error())
	}
}

// Get returns the cached value for key, or ok=false on a miss. Backend
// failures are treated as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.backend().get(ctx, key)
	if err == nil {
		c.failures.Store(0)
		return val, true
	}
	if !errors.Is(err, errMiss) {
		c.noteFailure(err)
		// The entry may still live in the fallback from a previous
		// degraded write.
		if val, err := c.fallback.get(ctx, key); err == nil {
			return val, true
		}
	}
	return "", false
}

// Set stores value under key for ttl. Failures are logged, never surfaced.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.backend().set(ctx, key, value, ttl); err != nil {
		c.noteFailure(err)
		_ = c.fallback.set(ctx, key, value, ttl)
		return
	}
	c.failures.Store(0)
}

// Delete removes key from the active store. Best effort.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.backend().del(ctx, key); err != nil && !errors.Is(err, errMiss) {
		c.noteFailure(err)
	}
	_ = c.fallback.del(ctx, key)
}
