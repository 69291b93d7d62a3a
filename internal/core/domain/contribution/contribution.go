package contribution

import (
	"time"
)

// Request is the inbound anonymous edit submitted by the wiki editor UI.
type Request struct {
	Section           string `json:"section" validate:"required,max=64,slug"`
	PageID            string `json:"pageId" validate:"required,max=128,slug"`
	PageTitle         string `json:"pageTitle" validate:"required,max=200"`
	Content           string `json:"content" validate:"required"`
	Email             string `json:"email" validate:"required,email,max=254"`
	DisplayName       string `json:"displayName" validate:"required,max=200"`
	Reason            string `json:"reason,omitempty" validate:"max=2000"`
	VerificationToken string `json:"verificationToken" validate:"required"`
	CaptchaToken      string `json:"captchaToken" validate:"required"`
}

// ClientInfo carries request metadata that never comes from the JSON body.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Result is returned once a submission has become a pull request.
type Result struct {
	PRNumber   int    `json:"prNumber"`
	PRURL      string `json:"prUrl"`
	BranchName string `json:"branchName"`
}

// Stage is a step of the contribution pipeline. Stages only move forward.
type Stage int

const (
	StageReceived Stage = iota
	StageEmailVerified
	StageCaptchaPassed
	StageRateLimitOK
	StageSanitized
	StageModerationPassed
	StageBranchCreated
	StageContentCommitted
	StagePullRequestOpened
	StageLabelsAttached
	StageCompleted
)

var stageNames = [...]string{
	StageReceived:          "Received",
	StageEmailVerified:     "EmailVerified",
	StageCaptchaPassed:     "CaptchaPassed",
	StageRateLimitOK:       "RateLimitOk",
	StageSanitized:         "Sanitized",
	StageModerationPassed:  "ModerationPassed",
	StageBranchCreated:     "BranchCreated",
	StageContentCommitted:  "ContentCommitted",
	StagePullRequestOpened: "PullRequestOpened",
	StageLabelsAttached:    "LabelsAttached",
	StageCompleted:         "Completed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// TouchesHosting reports whether reaching s required a write to the hosting API.
func (s Stage) TouchesHosting() bool {
	return s >= StageBranchCreated && s <= StageLabelsAttached
}

// Sanitized holds the cleaned user-facing fields after tag stripping and trimming.
type Sanitized struct {
	DisplayName string
	Reason      string
	Content     string
}

// Submission is the internal view of a request once the caller's identity is known.
type Submission struct {
	Request      *Request
	Sanitized    Sanitized
	Email        string
	EmailHash    string
	ClientHash   string
	CaptchaScore float64
	ReceivedAt   time.Time
}
