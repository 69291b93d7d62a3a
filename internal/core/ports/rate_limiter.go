package ports

import (
	"context"
	"time"
)

// RateLimitStore persists the recent action timestamps of an identity.
// Implementations keep at most a bounded number of entries per identity.
type RateLimitStore interface {
	// Timestamps returns the stored timestamps for key, oldest first.
	Timestamps(ctx context.Context, key string) ([]time.Time, error)
	// Append stores at, keeps only the newest maxEntries, and expires the key after ttl.
	Append(ctx context.Context, key string, at time.Time, maxEntries int, ttl time.Duration) error
}

// RateLimitDecision is the outcome of a sliding-window check.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a sliding-window admission check keyed by a hashed identity.
// Check never records; Record is the separate call made once an action is accepted.
type RateLimiter interface {
	Check(ctx context.Context, identityHash string, maxActions int, window time.Duration) (RateLimitDecision, error)
	Record(ctx context.Context, identityHash string, window time.Duration) error
	CheckAndRecord(ctx context.Context, identityHash string, maxActions int, window time.Duration) (RateLimitDecision, error)
}
