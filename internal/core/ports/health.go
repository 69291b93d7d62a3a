package ports

import "context"

// HealthChecker probes one backing dependency (shared store, audit database).
// Check returns nil when the dependency answers within ctx.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
