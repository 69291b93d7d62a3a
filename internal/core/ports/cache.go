package ports

import (
	"context"
	"time"
)

// Cache is the shared keyed store with TTL that outlives a single request.
// Codes, consumed-token records and similar short-lived state live here.
type Cache interface {
	// Get returns the raw bytes for key. ok=false if not found or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for key with TTL (0 or negative means no expiration if supported).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent stores value only when key holds no live entry and reports
	// whether this call stored it. Exactly one concurrent caller wins.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes the key and reports whether it existed; absence is not an error.
	Delete(ctx context.Context, key string) (bool, error)
}
