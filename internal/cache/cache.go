// Package cache stores raw upstream responses so repeated lookups do not hit
// the legal information API again.
package cache

import (
	"context"
	"time"
)

// Store persists byte values under string keys with a time to live.
// Get reports ok=false on a miss; errors are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
