package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/utils"
)

const (
	maxDisplayNameRunes = 50
	minDisplayNameRunes = 2
	maxReasonRunes      = 500
	maxPageTitleRunes   = 200
	maxLabelRunes       = 50
	emailLabelHashLen   = 12
)

var contributionOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contributions_total",
		Help: "Anonymous contribution pipeline runs by outcome and last completed stage",
	},
	[]string{"outcome", "stage"},
)

func init() {
	prometheus.MustRegister(contributionOutcomes)
}

// ContributionConfig holds the pipeline policy.
type ContributionConfig struct {
	MinCaptchaScore      float64
	SubmissionMax        int
	SubmissionWindow     time.Duration
	ContentRoot          string
	ModerationPrefixRune int
	CallTimeout          time.Duration
}

// ContributionService runs the anonymous edit pipeline. Stages run strictly in
// order. Rejections before BranchCreated have no side effects; failures after
// it are neither retried nor rolled back and report the last completed stage.
type ContributionService struct {
	tokens    ports.TokenService
	captcha   ports.CaptchaValidator
	limiter   ports.RateLimiter
	moderator ports.ContentModerator
	hosting   ports.HostingGateway
	audit     ports.AuditService
	cfg       ContributionConfig
	logger    *logrus.Logger
	now       func() time.Time
}

var _ ports.ContributionService = (*ContributionService)(nil)

func NewContributionService(
	tokens ports.TokenService,
	captcha ports.CaptchaValidator,
	limiter ports.RateLimiter,
	moderator ports.ContentModerator,
	hosting ports.HostingGateway,
	auditSvc ports.AuditService,
	cfg *ContributionConfig,
	logger *logrus.Logger,
) *ContributionService {
	c := ContributionConfig{
		MinCaptchaScore:      0.5,
		SubmissionMax:        5,
		SubmissionWindow:     time.Hour,
		ContentRoot:          "content",
		ModerationPrefixRune: 2000,
		CallTimeout:          15 * time.Second,
	}
	if cfg != nil {
		if cfg.MinCaptchaScore > 0 {
			c.MinCaptchaScore = cfg.MinCaptchaScore
		}
		if cfg.SubmissionMax > 0 {
			c.SubmissionMax = cfg.SubmissionMax
		}
		if cfg.SubmissionWindow > 0 {
			c.SubmissionWindow = cfg.SubmissionWindow
		}
		if cfg.ContentRoot != "" {
			c.ContentRoot = strings.Trim(cfg.ContentRoot, "/")
		}
		if cfg.ModerationPrefixRune > 0 {
			c.ModerationPrefixRune = cfg.ModerationPrefixRune
		}
		if cfg.CallTimeout > 0 {
			c.CallTimeout = cfg.CallTimeout
		}
	}
	return &ContributionService{
		tokens:    tokens,
		captcha:   captcha,
		limiter:   limiter,
		moderator: moderator,
		hosting:   hosting,
		audit:     auditSvc,
		cfg:       c,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *ContributionService) WithClock(clock func() time.Time) *ContributionService {
	s.now = clock
	return s
}

// run is the mutable state of one Submit call.
type run struct {
	sub     contribution.Submission
	stage   contribution.Stage
	branch  string
	pr      *ports.PullRequest
	claimed bool
}

func (s *ContributionService) Submit(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
	r := &run{stage: contribution.StageReceived}
	res, err := s.submit(ctx, r, req, client)
	if err != nil {
		s.releaseToken(ctx, r)
	}
	s.finish(ctx, r, client, err)
	return res, err
}

// releaseToken hands the verification token back after a failed run, as long
// as no pull request exists for it. Once a PR is open the token stays spent,
// even if labelling failed afterwards.
func (s *ContributionService) releaseToken(ctx context.Context, r *run) {
	if !r.claimed || r.pr != nil {
		return
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CallTimeout)
	defer cancel()
	if err := s.tokens.Release(callCtx, r.sub.Request.VerificationToken); err != nil && s.logger != nil {
		s.logger.WithField("email_hash", r.sub.EmailHash).WithError(err).Error("contribution: failed to release verification token")
	}
}

func (s *ContributionService) submit(ctx context.Context, r *run, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	r.sub = contribution.Submission{
		Request:    req,
		Email:      utils.NormalizeEmail(req.Email),
		EmailHash:  utils.HashIdentity(req.Email),
		ReceivedAt: s.now(),
	}
	if client.IPAddress != "" {
		r.sub.ClientHash = utils.HashIdentity(client.IPAddress)
	}

	if err := s.verifyEmail(ctx, r, req); err != nil {
		return nil, err
	}
	r.stage = contribution.StageEmailVerified

	if err := s.checkCaptcha(ctx, r, req.CaptchaToken, client.IPAddress); err != nil {
		return nil, err
	}
	r.stage = contribution.StageCaptchaPassed

	if err := s.checkRateLimit(ctx, r); err != nil {
		return nil, err
	}
	r.stage = contribution.StageRateLimitOK

	sanitized, err := sanitize(req)
	if err != nil {
		return nil, err
	}
	r.sub.Sanitized = sanitized
	r.stage = contribution.StageSanitized

	if err := s.moderate(ctx, sanitized); err != nil {
		return nil, err
	}
	r.stage = contribution.StageModerationPassed

	if err := s.createBranch(ctx, r); err != nil {
		return nil, err
	}
	r.stage = contribution.StageBranchCreated

	if err := s.commitContent(ctx, r); err != nil {
		return nil, err
	}
	r.stage = contribution.StageContentCommitted

	if err := s.openPullRequest(ctx, r); err != nil {
		return nil, err
	}
	r.stage = contribution.StagePullRequestOpened

	if err := s.attachLabels(ctx, r); err != nil {
		return nil, err
	}
	r.stage = contribution.StageLabelsAttached

	s.complete(ctx, r)
	r.stage = contribution.StageCompleted

	return &contribution.Result{PRNumber: r.pr.Number, PRURL: r.pr.URL, BranchName: r.branch}, nil
}

func checkRequest(req *contribution.Request) error {
	if req == nil {
		return &contribution.ValidationError{Message: "request body is required"}
	}
	required := []struct{ field, value string }{
		{"section", req.Section},
		{"pageId", req.PageID},
		{"pageTitle", req.PageTitle},
		{"content", req.Content},
		{"email", req.Email},
		{"displayName", req.DisplayName},
		{"verificationToken", req.VerificationToken},
		{"captchaToken", req.CaptchaToken},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &contribution.ValidationError{Field: f.field, Message: "is required"}
		}
	}
	if !contribution.IsSlug(req.Section) {
		return &contribution.ValidationError{Field: "section", Message: "must contain only letters, digits, '-' or '_'"}
	}
	if !contribution.IsSlug(req.PageID) {
		return &contribution.ValidationError{Field: "pageId", Message: "must contain only letters, digits, '-' or '_'"}
	}
	return nil
}

// verifyEmail checks the token and claims it, so a concurrent submission
// with the same token fails here rather than opening a second PR.
func (s *ContributionService) verifyEmail(ctx context.Context, r *run, req *contribution.Request) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	err := s.tokens.ValidateFor(callCtx, req.VerificationToken, req.Email)
	if err == nil {
		err = s.tokens.Claim(callCtx, req.VerificationToken)
		r.claimed = err == nil
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenExpired):
		return &contribution.VerificationError{Reason: "token expired", Err: err}
	case errors.Is(err, ErrTokenConsumed):
		return &contribution.VerificationError{Reason: "token already used", Err: err}
	case errors.Is(err, ErrTokenInvalid):
		return &contribution.VerificationError{Reason: "token invalid", Err: err}
	default:
		return &contribution.VerificationError{Reason: "token could not be checked", Err: err}
	}
}

func (s *ContributionService) checkCaptcha(ctx context.Context, r *run, token, clientIP string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	result := s.captcha.Validate(callCtx, token, clientIP)
	r.sub.CaptchaScore = result.Score
	if !result.Accepted || result.Score < s.cfg.MinCaptchaScore {
		return &contribution.CaptchaError{Score: result.Score}
	}
	return nil
}

// rateKey scopes the submission window to the client address, or to the
// email when no address is known.
func (s *ContributionService) rateKey(r *run) string {
	if r.sub.ClientHash != "" {
		return "submission:ip:" + r.sub.ClientHash
	}
	return "submission:email:" + r.sub.EmailHash
}

func (s *ContributionService) checkRateLimit(ctx context.Context, r *run) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	d, err := s.limiter.Check(callCtx, s.rateKey(r), s.cfg.SubmissionMax, s.cfg.SubmissionWindow)
	if err != nil && s.logger != nil {
		s.logger.WithError(err).Error("contribution: rate limit check failed, rejecting")
	}
	if err != nil || !d.Allowed {
		return &contribution.RateLimitError{RetryAfter: d.RetryAfter}
	}
	return nil
}

func sanitize(req *contribution.Request) (contribution.Sanitized, error) {
	out := contribution.Sanitized{
		DisplayName: utils.SanitizeLine(req.DisplayName, maxDisplayNameRunes),
		Reason:      utils.SanitizeLine(req.Reason, maxReasonRunes),
		Content:     strings.TrimSpace(req.Content),
	}
	if err := utils.RequireMinLength(out.DisplayName, minDisplayNameRunes); err != nil {
		return out, &contribution.ValidationError{Field: "displayName", Message: fmt.Sprintf("must be at least %d characters", minDisplayNameRunes)}
	}
	if out.Content == "" {
		return out, &contribution.ValidationError{Field: "content", Message: "is required"}
	}
	return out, nil
}

func (s *ContributionService) moderate(ctx context.Context, in contribution.Sanitized) error {
	fields := []struct{ name, text string }{
		{"displayName", in.DisplayName},
		{"reason", in.Reason},
		{"content", utils.Truncate(in.Content, s.cfg.ModerationPrefixRune)},
	}
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		v := s.moderator.Classify(callCtx, f.text)
		cancel()
		if v.Flagged {
			return &contribution.ModerationError{Field: f.name, Method: v.Method.String()}
		}
	}
	return nil
}

func (s *ContributionService) hostingErr(r *run, op string, err error) error {
	return &contribution.HostingError{LastStage: r.stage, Op: op, Branch: r.branch, Err: err}
}

func (s *ContributionService) createBranch(ctx context.Context, r *run) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	head, err := s.hosting.GetDefaultBranchHead(callCtx)
	if err != nil {
		return s.hostingErr(r, "get_default_branch_head", err)
	}

	name := fmt.Sprintf("anon/%s/%s-%d", r.sub.Request.Section, r.sub.Request.PageID, r.sub.ReceivedAt.UnixMilli())
	callCtx2, cancel2 := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel2()
	if err := s.hosting.CreateBranch(callCtx2, name, head); err != nil {
		return s.hostingErr(r, "create_branch", err)
	}
	r.branch = name
	return nil
}

func (s *ContributionService) filePath(req *contribution.Request) string {
	return path.Join(s.cfg.ContentRoot, req.Section, req.PageID+".md")
}

func (s *ContributionService) commitContent(ctx context.Context, r *run) error {
	req := r.sub.Request
	filePath := s.filePath(req)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	rev, err := s.hosting.GetFileRevision(callCtx, filePath, s.hosting.DefaultBranch())
	if err != nil && !errors.Is(err, ports.ErrFileNotFound) {
		return s.hostingErr(r, "get_file_revision", err)
	}

	msg := fmt.Sprintf("Anonymous edit: %s\n\nSubmitted-by: %s\nEmail: %s\nEmail-Hash: %s\n",
		utils.SanitizeLine(req.PageTitle, maxPageTitleRunes),
		r.sub.Sanitized.DisplayName,
		utils.MaskEmail(r.sub.Email),
		r.sub.EmailHash,
	)
	callCtx2, cancel2 := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel2()
	err = s.hosting.CommitFile(callCtx2, &ports.CommitFileRequest{
		Branch:           r.branch,
		Path:             filePath,
		Content:          []byte(r.sub.Sanitized.Content),
		Message:          msg,
		ExpectedRevision: rev,
	})
	if err != nil {
		return s.hostingErr(r, "commit_file", err)
	}
	return nil
}

func (s *ContributionService) openPullRequest(ctx context.Context, r *run) error {
	req := r.sub.Request
	title := fmt.Sprintf("[Anonymous Edit] %s/%s", req.Section, utils.SanitizeLine(req.PageTitle, maxPageTitleRunes))

	reason := r.sub.Sanitized.Reason
	if reason == "" {
		reason = "_No reason given_"
	}
	var b strings.Builder
	b.WriteString("## Anonymous contribution\n\n")
	fmt.Fprintf(&b, "**Page:** `%s`\n", s.filePath(req))
	fmt.Fprintf(&b, "**Submitted by:** %s\n", r.sub.Sanitized.DisplayName)
	fmt.Fprintf(&b, "**Email:** %s\n", utils.MaskEmail(r.sub.Email))
	fmt.Fprintf(&b, "**Reason:** %s\n", reason)
	fmt.Fprintf(&b, "**Submitted at:** %s\n", r.sub.ReceivedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Captcha score:** %.2f\n\n", r.sub.CaptchaScore)
	fmt.Fprintf(&b, "Email hash: `%s`\n", r.sub.EmailHash)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	pr, err := s.hosting.OpenPullRequest(callCtx, title, b.String(), r.branch, s.hosting.DefaultBranch())
	if err != nil {
		return s.hostingErr(r, "open_pull_request", err)
	}
	r.pr = pr
	return nil
}

// Labels returns the label set attached to a contribution pull request.
func Labels(section, displayName, emailHash string) []string {
	hash := emailHash
	if len(hash) > emailLabelHashLen {
		hash = hash[:emailLabelHashLen]
	}
	raw := []string{
		"anonymous-edit",
		"needs-review",
		section,
		"submitter:" + displayName,
		"email:" + hash,
	}
	labels := make([]string, len(raw))
	for i, l := range raw {
		labels[i] = utils.Truncate(l, maxLabelRunes)
	}
	return labels
}

func (s *ContributionService) attachLabels(ctx context.Context, r *run) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	labels := Labels(r.sub.Request.Section, r.sub.Sanitized.DisplayName, r.sub.EmailHash)
	if err := s.hosting.AddLabels(callCtx, r.pr.Number, labels); err != nil {
		return s.hostingErr(r, "add_labels", err)
	}
	return nil
}

// complete performs the post-success accounting. The pull request already
// exists, so failures here are logged and do not fail the submission.
func (s *ContributionService) complete(ctx context.Context, r *run) {
	if err := s.limiter.Record(ctx, s.rateKey(r), s.cfg.SubmissionWindow); err != nil && s.logger != nil {
		s.logger.WithField("branch", r.branch).WithError(err).Error("contribution: failed to record rate limit slot")
	}
}

func (s *ContributionService) finish(ctx context.Context, r *run, client contribution.ClientInfo, err error) {
	outcome := audit.OutcomeCompleted
	var hostingErr *contribution.HostingError
	switch {
	case err == nil:
	case errors.As(err, &hostingErr):
		outcome = audit.OutcomeFailed
	default:
		outcome = audit.OutcomeRejected
	}
	contributionOutcomes.WithLabelValues(string(outcome), r.stage.String()).Inc()

	if s.logger != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"outcome":    outcome,
			"last_stage": r.stage.String(),
			"branch":     r.branch,
			"email_hash": r.sub.EmailHash,
		})
		switch outcome {
		case audit.OutcomeFailed:
			entry.WithError(err).Error("contribution: hosting write failed; branch may need manual cleanup")
		case audit.OutcomeRejected:
			entry.WithField("reason", ErrorClass(err)).Info("contribution rejected")
		default:
			entry.WithField("pr_number", r.pr.Number).Info("contribution completed")
		}
	}

	if s.audit == nil {
		return
	}
	rec := &audit.ContributionAudit{
		ID:         uuid.New(),
		Outcome:    outcome,
		LastStage:  r.stage.String(),
		ErrorClass: ErrorClass(err),
		Branch:     r.branch,
		EmailHash:  r.sub.EmailHash,
		ClientHash: r.sub.ClientHash,
		UserAgent:  utils.Truncate(client.UserAgent, 255),
		CreatedAt:  s.now(),
	}
	if req := r.sub.Request; req != nil {
		rec.Section = req.Section
		rec.PageID = req.PageID
	}
	if r.pr != nil {
		n := r.pr.Number
		rec.PRNumber = &n
	}
	s.audit.Record(context.WithoutCancel(ctx), rec)
}

// ErrorClass names the taxonomy bucket of a pipeline error.
func ErrorClass(err error) string {
	var (
		validation   *contribution.ValidationError
		verification *contribution.VerificationError
		captcha      *contribution.CaptchaError
		rateLimit    *contribution.RateLimitError
		moderationE  *contribution.ModerationError
		hosting      *contribution.HostingError
		config       *contribution.ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &verification):
		return "verification"
	case errors.As(err, &captcha):
		return "captcha"
	case errors.As(err, &rateLimit):
		return "rate_limit"
	case errors.As(err, &moderationE):
		return "moderation"
	case errors.As(err, &hosting):
		return "hosting"
	case errors.As(err, &config):
		return "configuration"
	default:
		return "internal"
	}
}
