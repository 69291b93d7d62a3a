package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/wiki-contributions/internal/application/services"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/test/mocks"
)

func TestAuditService_RecordFillsDefaults(t *testing.T) {
	repo := &mocks.AuditRepositoryMock{}
	svc := impl.NewAuditService(repo, nil)

	svc.Record(context.Background(), &audit.ContributionAudit{Outcome: audit.OutcomeRejected, LastStage: "Received"})
	rec := repo.Last()
	require.NotNil(t, rec)
	require.NotEqual(t, uuid.Nil, rec.ID)
	require.False(t, rec.CreatedAt.IsZero())
}

func TestAuditService_RecordSwallowsErrors(t *testing.T) {
	repo := &mocks.AuditRepositoryMock{CreateFn: func(ctx context.Context, rec *audit.ContributionAudit) error {
		return errors.New("db down")
	}}
	svc := impl.NewAuditService(repo, nil)
	require.NotPanics(t, func() {
		svc.Record(context.Background(), &audit.ContributionAudit{Outcome: audit.OutcomeFailed})
	})
}

func TestAuditService_ListClampsPage(t *testing.T) {
	var seen *audit.Filter
	repo := &mocks.AuditRepositoryMock{
		ListFn: func(ctx context.Context, f *audit.Filter) ([]*audit.ContributionAudit, error) {
			seen = f
			return []*audit.ContributionAudit{{Outcome: audit.OutcomeCompleted}}, nil
		},
		CountFn: func(ctx context.Context, f *audit.Filter) (int, error) { return 7, nil },
	}
	svc := impl.NewAuditService(repo, nil)

	recs, total, err := svc.List(context.Background(), &audit.Filter{Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 7, total)
	require.Equal(t, 50, seen.Limit)
	require.Equal(t, 0, seen.Offset)
}

func TestAuditService_ListPropagatesErrors(t *testing.T) {
	repo := &mocks.AuditRepositoryMock{CountFn: func(ctx context.Context, f *audit.Filter) (int, error) {
		return 0, errors.New("boom")
	}}
	_, _, err := impl.NewAuditService(repo, nil).List(context.Background(), nil)
	require.Error(t, err)
}
