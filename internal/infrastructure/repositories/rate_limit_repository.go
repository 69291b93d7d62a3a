package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

var _ ports.RateLimitStore = (*RateLimitRedisRepository)(nil)

// RateLimitRedisRepository keeps each identity's recent action timestamps in a
// Redis list, newest at the tail, trimmed to a fixed length.
type RateLimitRedisRepository struct {
	r         redis.Cmdable
	keyPrefix string
}

func NewRateLimitRedisRepository(r redis.Cmdable, keyPrefix string) *RateLimitRedisRepository {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RateLimitRedisRepository{r: r, keyPrefix: keyPrefix}
}

func (repo *RateLimitRedisRepository) key(identity string) string {
	return fmt.Sprintf("%s:%s", repo.keyPrefix, identity)
}

// Timestamps returns the stored timestamps for identity, oldest first.
func (repo *RateLimitRedisRepository) Timestamps(ctx context.Context, identity string) ([]time.Time, error) {
	raw, err := repo.r.LRange(ctx, repo.key(identity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		nanos, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, time.Unix(0, nanos))
	}
	return out, nil
}

// Append pushes at, trims the list to maxEntries and refreshes the key TTL atomically.
func (repo *RateLimitRedisRepository) Append(ctx context.Context, identity string, at time.Time, maxEntries int, ttl time.Duration) error {
	key := repo.key(identity)
	pipe := repo.r.TxPipeline()
	pipe.RPush(ctx, key, strconv.FormatInt(at.UnixNano(), 10))
	if maxEntries > 0 {
		pipe.LTrim(ctx, key, int64(-maxEntries), -1)
	}
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append rate limit: %w", err)
	}
	return nil
}
