package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/moderation"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// HostingGatewayMock records every call in Calls so tests can assert which
// hosting writes happened.
type HostingGatewayMock struct {
	mu    sync.Mutex
	Calls []string

	DefaultBranchName      string
	GetDefaultBranchHeadFn func(ctx context.Context) (string, error)
	CreateBranchFn         func(ctx context.Context, name, fromSHA string) error
	GetFileRevisionFn      func(ctx context.Context, path, branch string) (string, error)
	CommitFileFn           func(ctx context.Context, req *ports.CommitFileRequest) error
	OpenPullRequestFn      func(ctx context.Context, title, body, head, base string) (*ports.PullRequest, error)
	AddLabelsFn            func(ctx context.Context, number int, labels []string) error
}

func (m *HostingGatewayMock) record(call string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

// Called reports whether call was made.
func (m *HostingGatewayMock) Called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c == call {
			return true
		}
	}
	return false
}

func (m *HostingGatewayMock) DefaultBranch() string {
	if m.DefaultBranchName != "" {
		return m.DefaultBranchName
	}
	return "main"
}
func (m *HostingGatewayMock) GetDefaultBranchHead(ctx context.Context) (string, error) {
	m.record("GetDefaultBranchHead")
	if m.GetDefaultBranchHeadFn != nil {
		return m.GetDefaultBranchHeadFn(ctx)
	}
	return "head-sha", nil
}
func (m *HostingGatewayMock) CreateBranch(ctx context.Context, name, fromSHA string) error {
	m.record("CreateBranch")
	if m.CreateBranchFn != nil {
		return m.CreateBranchFn(ctx, name, fromSHA)
	}
	return nil
}
func (m *HostingGatewayMock) GetFileRevision(ctx context.Context, path, branch string) (string, error) {
	m.record("GetFileRevision")
	if m.GetFileRevisionFn != nil {
		return m.GetFileRevisionFn(ctx, path, branch)
	}
	return "", ports.ErrFileNotFound
}
func (m *HostingGatewayMock) CommitFile(ctx context.Context, req *ports.CommitFileRequest) error {
	m.record("CommitFile")
	if m.CommitFileFn != nil {
		return m.CommitFileFn(ctx, req)
	}
	return nil
}
func (m *HostingGatewayMock) OpenPullRequest(ctx context.Context, title, body, head, base string) (*ports.PullRequest, error) {
	m.record("OpenPullRequest")
	if m.OpenPullRequestFn != nil {
		return m.OpenPullRequestFn(ctx, title, body, head, base)
	}
	return &ports.PullRequest{Number: 1, URL: "https://example.test/pull/1"}, nil
}
func (m *HostingGatewayMock) AddLabels(ctx context.Context, number int, labels []string) error {
	m.record("AddLabels")
	if m.AddLabelsFn != nil {
		return m.AddLabelsFn(ctx, number, labels)
	}
	return nil
}

// CaptchaValidatorMock returns Result unless ValidateFn is set.
type CaptchaValidatorMock struct {
	Result     ports.CaptchaResult
	ValidateFn func(ctx context.Context, token, clientIP string) ports.CaptchaResult
}

func (m *CaptchaValidatorMock) Validate(ctx context.Context, token, clientIP string) ports.CaptchaResult {
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, token, clientIP)
	}
	return m.Result
}

// ModerationClassifierMock is a stand-in for the remote classifier.
type ModerationClassifierMock struct {
	ClassifyFn func(ctx context.Context, text string) (bool, []string, error)
}

func (m *ModerationClassifierMock) Classify(ctx context.Context, text string) (bool, []string, error) {
	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, text)
	}
	return false, nil, nil
}

// ContentModeratorMock returns an unflagged primary verdict by default.
type ContentModeratorMock struct {
	ClassifyFn func(ctx context.Context, text string) moderation.Verdict
}

func (m *ContentModeratorMock) Classify(ctx context.Context, text string) moderation.Verdict {
	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, text)
	}
	return moderation.Verdict{Method: moderation.MethodPrimary}
}

// EmailServiceMock captures the last delivered code.
type EmailServiceMock struct {
	mu                     sync.Mutex
	LastEmail, LastCode    string
	Sent                   int
	SendVerificationCodeFn func(ctx context.Context, email, code string, validFor time.Duration) error
}

func (m *EmailServiceMock) SendVerificationCode(ctx context.Context, email, code string, validFor time.Duration) error {
	if m.SendVerificationCodeFn != nil {
		if err := m.SendVerificationCodeFn(ctx, email, code, validFor); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.LastEmail, m.LastCode = email, code
	m.Sent++
	m.mu.Unlock()
	return nil
}

// TokenServiceMock accepts every token unless ValidateForFn or ClaimFn is set.
type TokenServiceMock struct {
	mu            sync.Mutex
	IssueFn       func(email string) (string, error)
	ValidateFn    func(token string) (string, error)
	ValidateForFn func(ctx context.Context, token, suppliedEmail string) error
	ClaimFn       func(ctx context.Context, token string) error
	ReleaseFn     func(ctx context.Context, token string) error
	Claimed       []string
	Released      []string
}

func (m *TokenServiceMock) Issue(email string) (string, error) {
	if m.IssueFn != nil {
		return m.IssueFn(email)
	}
	return "token-for-" + email, nil
}
func (m *TokenServiceMock) Validate(token string) (string, error) {
	if m.ValidateFn != nil {
		return m.ValidateFn(token)
	}
	return "", fmt.Errorf("not configured")
}
func (m *TokenServiceMock) ValidateFor(ctx context.Context, token, suppliedEmail string) error {
	if m.ValidateForFn != nil {
		return m.ValidateForFn(ctx, token, suppliedEmail)
	}
	return nil
}
func (m *TokenServiceMock) Claim(ctx context.Context, token string) error {
	if m.ClaimFn != nil {
		if err := m.ClaimFn(ctx, token); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Claimed = append(m.Claimed, token)
	m.mu.Unlock()
	return nil
}
func (m *TokenServiceMock) Release(ctx context.Context, token string) error {
	m.mu.Lock()
	m.Released = append(m.Released, token)
	m.mu.Unlock()
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, token)
	}
	return nil
}

// RateLimitStoreMock fails every call with Err when set.
type RateLimitStoreMock struct {
	Err error
}

func (m *RateLimitStoreMock) Timestamps(ctx context.Context, key string) ([]time.Time, error) {
	return nil, m.Err
}
func (m *RateLimitStoreMock) Append(ctx context.Context, key string, at time.Time, maxEntries int, ttl time.Duration) error {
	return m.Err
}

// AuditRepositoryMock keeps created records in memory.
type AuditRepositoryMock struct {
	mu       sync.Mutex
	Records  []*audit.ContributionAudit
	CreateFn func(ctx context.Context, rec *audit.ContributionAudit) error
	ListFn   func(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, error)
	CountFn  func(ctx context.Context, filter *audit.Filter) (int, error)
}

func (m *AuditRepositoryMock) Create(ctx context.Context, rec *audit.ContributionAudit) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, rec)
	}
	m.mu.Lock()
	m.Records = append(m.Records, rec)
	m.mu.Unlock()
	return nil
}
func (m *AuditRepositoryMock) List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.ContributionAudit(nil), m.Records...), nil
}
func (m *AuditRepositoryMock) Count(ctx context.Context, filter *audit.Filter) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records), nil
}

// Last returns the most recent audit record, or nil.
func (m *AuditRepositoryMock) Last() *audit.ContributionAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return nil
	}
	return m.Records[len(m.Records)-1]
}

// ContributionServiceMock backs handler tests.
type ContributionServiceMock struct {
	SubmitFn func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error)
}

func (m *ContributionServiceMock) Submit(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, req, client)
	}
	return &contribution.Result{}, nil
}

// VerificationServiceMock backs handler tests.
type VerificationServiceMock struct {
	RequestCodeFn func(ctx context.Context, email, clientIP string) (*verification.RequestCodeResponse, error)
	ConfirmCodeFn func(ctx context.Context, email, code string) (*verification.ConfirmCodeResponse, error)
}

func (m *VerificationServiceMock) RequestCode(ctx context.Context, email, clientIP string) (*verification.RequestCodeResponse, error) {
	if m.RequestCodeFn != nil {
		return m.RequestCodeFn(ctx, email, clientIP)
	}
	return &verification.RequestCodeResponse{Accepted: true}, nil
}
func (m *VerificationServiceMock) ConfirmCode(ctx context.Context, email, code string) (*verification.ConfirmCodeResponse, error) {
	if m.ConfirmCodeFn != nil {
		return m.ConfirmCodeFn(ctx, email, code)
	}
	return &verification.ConfirmCodeResponse{}, nil
}

// AuditServiceMock backs handler tests.
type AuditServiceMock struct {
	ListFn func(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, int, error)
}

func (m *AuditServiceMock) Record(ctx context.Context, rec *audit.ContributionAudit) {}
func (m *AuditServiceMock) List(ctx context.Context, filter *audit.Filter) ([]*audit.ContributionAudit, int, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, 0, nil
}

var (
	_ ports.HostingGateway       = (*HostingGatewayMock)(nil)
	_ ports.CaptchaValidator     = (*CaptchaValidatorMock)(nil)
	_ ports.ModerationClassifier = (*ModerationClassifierMock)(nil)
	_ ports.ContentModerator     = (*ContentModeratorMock)(nil)
	_ ports.EmailService         = (*EmailServiceMock)(nil)
	_ ports.TokenService         = (*TokenServiceMock)(nil)
	_ ports.RateLimitStore       = (*RateLimitStoreMock)(nil)
	_ ports.AuditRepository      = (*AuditRepositoryMock)(nil)
	_ ports.ContributionService  = (*ContributionServiceMock)(nil)
	_ ports.VerificationService  = (*VerificationServiceMock)(nil)
	_ ports.AuditService         = (*AuditServiceMock)(nil)
)
