package ports

import (
	"context"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
)

// AuditRepository defines the interface for contribution audit persistence
type AuditRepository interface {
	Create(ctx context.Context, rec *audit.ContributionAudit) error
	List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, error)
	Count(ctx context.Context, filter *audit.Filter) (int, error)
}

// AuditService records pipeline outcomes for operators.
type AuditService interface {
	Record(ctx context.Context, rec *audit.ContributionAudit)
	List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, int, error)
}
