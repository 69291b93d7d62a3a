package audit

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// ContributionAudit records how far one submission progressed. Rows with
// OutcomeFailed and a Branch are the orphaned branches operators clean up.
type ContributionAudit struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Outcome    Outcome   `json:"outcome" db:"outcome"`
	LastStage  string    `json:"last_stage" db:"last_stage"`
	ErrorClass string    `json:"error_class" db:"error_class"`
	Section    string    `json:"section" db:"section"`
	PageID     string    `json:"page_id" db:"page_id"`
	Branch     string    `json:"branch" db:"branch"`
	PRNumber   *int      `json:"pr_number" db:"pr_number"`
	EmailHash  string    `json:"email_hash" db:"email_hash"`
	ClientHash string    `json:"client_hash" db:"client_hash"`
	UserAgent  string    `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Filter narrows audit queries.
type Filter struct {
	Outcome   *Outcome `json:"outcome,omitempty"`
	EmailHash *string  `json:"email_hash,omitempty"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}
