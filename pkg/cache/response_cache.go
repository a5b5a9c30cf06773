package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
)

// ResponseCache memoizes generation responses by (model, prompt). Concurrent
// loads of one key share a single call.
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(store Store, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("response-cache"),
	}
}

// Key derives the cache key from the model and the full prompt.
func Key(model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached value.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.Error(err))
		return "", false
	}
	return v, ok
}

// Set stores a value with the cache TTL.
func (c *ResponseCache) Set(ctx context.Context, key, value string) {
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}

// GetOrLoad returns the cached value for key, or calls load once for all
// concurrent callers and caches a successful result. Errors are not cached.
// hit reports whether the value came from the cache.
func (c *ResponseCache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (string, error)) (value string, hit bool, err error) {
	if v, ok := c.Get(ctx, key); ok {
		metrics.ObserveCacheLookup(metrics.CacheHit)
		return v, true, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the entry since our miss.
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return "", err
		}
		c.Set(ctx, key, v)
		return v, nil
	})

	switch {
	case err != nil:
		metrics.ObserveCacheLookup(metrics.CacheError)
		return "", false, err
	case shared:
		metrics.ObserveCacheLookup(metrics.CacheShared)
	default:
		metrics.ObserveCacheLookup(metrics.CacheMiss)
	}
	return v.(string), false, nil
}

// Close closes the underlying store.
func (c *ResponseCache) Close() error {
	return c.store.Close()
}
