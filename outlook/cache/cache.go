package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outlook_cache_requests_total",
	Help: "Cache lookups by result (hit, miss).",
}, []string{"result"})

// Stats summarizes cache effectiveness since creation.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Total          int64   `json:"total"`
	HitRatePercent float64 `json:"hitRatePercent"`
}

// Cache stores JSON encoded values in a Store and coalesces concurrent loads of the same key.
type Cache struct {
	store  Store
	group  singleflight.Group
	scope  func(ctx context.Context) (string, error)
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScope prefixes every key with the namespace returned for the request context,
// so callers never see each other's entries.
func WithScope(scope func(ctx context.Context) (string, error)) Option {
	return func(c *Cache) { c.scope = scope }
}

// New creates a Cache over store; a nil store uses a MemoryStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(ctx context.Context, key string) string {
	if c.scope == nil {
		return key
	}
	ns, err := c.scope(ctx)
	if err != nil || ns == "" {
		ns = "default"
	}
	return ns + "|" + key
}

// Get decodes the entry for key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, ok, err := c.store.Get(ctx, c.key(ctx, key))
	if err != nil {
		c.recordMiss()
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		c.recordMiss()
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.recordMiss()
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	c.recordHit()
	return true, nil
}

// Set encodes value and stores it under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.store.Set(ctx, c.key(ctx, key), data, ttl)
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(ctx, key))
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Total: hits + misses}
	if s.Total > 0 {
		s.HitRatePercent = float64(hits) / float64(s.Total) * 100
	}
	return s
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	requests.WithLabelValues("hit").Inc()
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	requests.WithLabelValues("miss").Inc()
}

// load runs fetch once per key among concurrent callers, stores the encoded result and returns it.
func (c *Cache) load(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (any, error)) ([]byte, error) {
	scoped := c.key(ctx, key)
	// the shared fetch outlives cancellation of the caller that started it
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(scoped, func() (any, error) {
		value, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache encode %s: %w", key, err)
		}
		if err := c.store.Set(shared, scoped, data, ttl); err != nil {
			c.logger.Warn("cache store failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Typed binds a Cache to values of type T.
type Typed[T any] struct {
	cache *Cache
}

// For returns a typed view of c.
func For[T any](c *Cache) *Typed[T] {
	return &Typed[T]{cache: c}
}

// GetOrFetch returns the cached value for key or loads it with fetch and caches it for ttl.
// Fetch errors are returned and never cached; store failures fall back to fetch.
func (t *Typed[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	ok, err := t.cache.Get(ctx, key, &cached)
	if err != nil {
		t.cache.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		return cached, nil
	}

	data, err := t.cache.load(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return out, nil
}
