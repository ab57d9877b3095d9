// Package cache defines the key/value store used to memoize search pages
// and suggestion lists.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value store holding JSON-encodable values. Concurrent
// writers to one key resolve last-write-wins.
type Store interface {
	// Get decodes the value stored under key into dst. It reports false
	// when the key is absent or expired.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Flush removes every entry owned by the store.
	Flush(ctx context.Context) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
