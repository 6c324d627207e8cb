// Package store is the TTL key-value abstraction behind sessions and the
// ticket mapping cache.
package store

import (
	"context"
	"time"
)

// Store keeps JSON-serialisable values under string keys with an expiry.
// A ttl <= 0 means the entry never expires.
type Store interface {
	// Get decodes the value under key into dst. found is false for a
	// missing or expired key.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys lists live keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
