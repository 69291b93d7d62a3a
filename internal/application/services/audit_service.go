package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

const maxAuditPageSize = 200

type AuditService struct {
	repo   ports.AuditRepository
	logger *logrus.Logger
}

func NewAuditService(repo ports.AuditRepository, logger *logrus.Logger) ports.AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// Record persists rec. Audit failures are logged and never surface to the pipeline.
func (s *AuditService) Record(ctx context.Context, rec *audit.ContributionAudit) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"outcome": rec.Outcome, "last_stage": rec.LastStage, "branch": rec.Branch}).WithError(err).Error("failed to persist contribution audit")
		}
		return
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"id": rec.ID, "outcome": rec.Outcome, "last_stage": rec.LastStage}).Debug("contribution audit persisted")
	}
}

func (s *AuditService) List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, int, error) {
	if filter == nil {
		filter = &audit.Filter{}
	}
	if filter.Limit <= 0 || filter.Limit > maxAuditPageSize {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	recs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}
