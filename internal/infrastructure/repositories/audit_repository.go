package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/db"
)

const auditColumns = `id, outcome, last_stage, error_class, section, page_id, branch,
	pr_number, email_hash, client_hash, user_agent, created_at`

type auditRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewAuditRepository creates a Postgres-backed AuditRepository
func NewAuditRepository(database *db.Database, logger *logrus.Logger) ports.AuditRepository {
	return &auditRepository{
		db:     database,
		logger: logger,
	}
}

// Create inserts a new contribution audit row
func (r *auditRepository) Create(ctx context.Context, rec *audit.ContributionAudit) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO contribution_audit (` + auditColumns + `)
		VALUES (
			:id, :outcome, :last_stage, :error_class, :section, :page_id, :branch,
			:pr_number, :email_hash, :client_hash, :user_agent, :created_at
		)`

	_, err := r.db.DB.NamedExecContext(ctx, query, rec)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"audit_id": rec.ID, "outcome": rec.Outcome, "last_stage": rec.LastStage}).WithError(err).Error("db: failed to insert contribution audit")
		}
		return err
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"audit_id": rec.ID, "outcome": rec.Outcome}).Debug("db: contribution audit inserted")
	}
	return nil
}

// List retrieves audit rows matching filter, newest first
func (r *auditRepository) List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, error) {
	query, args := buildAuditQuery(filter, false)
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"query": query}).Debug("db: executing audit list query")
	}
	var rows []*audit.ContributionAudit
	if err := r.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to execute audit list query")
		}
		return nil, err
	}
	return rows, nil
}

// Count returns the number of audit rows matching filter
func (r *auditRepository) Count(ctx context.Context, filter *audit.Filter) (int, error) {
	query, args := buildAuditQuery(filter, true)
	var count int
	if err := r.db.DB.GetContext(ctx, &count, query, args...); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to execute audit count query")
		}
		return 0, err
	}
	return count, nil
}

// buildAuditQuery constructs the SQL and positional args for listing/counting audit rows
func buildAuditQuery(filter *audit.Filter, isCount bool) (string, []interface{}) {
	selectClause := "SELECT " + auditColumns
	if isCount {
		selectClause = "SELECT COUNT(*)"
	}

	query := selectClause + " FROM contribution_audit"
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter != nil {
		if filter.Outcome != nil {
			conditions = append(conditions, "outcome = $"+strconv.Itoa(argIndex))
			args = append(args, string(*filter.Outcome))
			argIndex++
		}
		if filter.EmailHash != nil {
			conditions = append(conditions, "email_hash = $"+strconv.Itoa(argIndex))
			args = append(args, *filter.EmailHash)
			argIndex++
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !isCount {
		query += " ORDER BY created_at DESC"
		if filter != nil {
			if filter.Limit > 0 {
				query += " LIMIT $" + strconv.Itoa(argIndex)
				args = append(args, filter.Limit)
				argIndex++
			}
			if filter.Offset > 0 {
				query += " OFFSET $" + strconv.Itoa(argIndex)
				args = append(args, filter.Offset)
			}
		}
	}

	return query, args
}

// logAuditRepository is used when no database is configured. Rows go to the
// log only; List and Count report nothing.
type logAuditRepository struct {
	logger *logrus.Logger
}

// NewLogAuditRepository returns an AuditRepository that writes to the logger.
func NewLogAuditRepository(logger *logrus.Logger) ports.AuditRepository {
	return &logAuditRepository{logger: logger}
}

func (r *logAuditRepository) Create(ctx context.Context, rec *audit.ContributionAudit) error {
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"outcome":     rec.Outcome,
			"last_stage":  rec.LastStage,
			"error_class": rec.ErrorClass,
			"branch":      rec.Branch,
			"pr_number":   rec.PRNumber,
			"email_hash":  rec.EmailHash,
		}).Info("contribution audit")
	}
	return nil
}

func (r *logAuditRepository) List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, error) {
	return nil, nil
}

func (r *logAuditRepository) Count(ctx context.Context, filter *audit.Filter) (int, error) {
	return 0, nil
}
