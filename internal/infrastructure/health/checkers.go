package health

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	infraDB "github.com/avatarctic/wiki-contributions/internal/infrastructure/db"
)

// dbHealthChecker probes the audit database.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// redisHealthChecker probes the shared verification/rate-limit store.
type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// staticHealthChecker reports a fixed component as healthy, e.g. the
// in-memory store that has no remote dependency.
type staticHealthChecker struct{ name string }

func (s *staticHealthChecker) Name() string                    { return s.name }
func (s *staticHealthChecker) Check(ctx context.Context) error { return nil }

// NewDBHealthChecker creates a health checker for the audit database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewStaticHealthChecker creates a checker that always passes.
func NewStaticHealthChecker(name string) ports.HealthChecker {
	return &staticHealthChecker{name: name}
}
