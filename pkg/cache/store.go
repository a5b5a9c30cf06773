// Package cache memoizes generation responses in memory, optionally backed
// by a shared Redis tier.
package cache

import (
	"context"
	"time"
)

// Store is a string key/value store with per-entry TTL.
type Store interface {
	// Get returns the value and true on a hit. A miss is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Close releases resources held by the store.
	Close() error
}
