package services

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/utils"
)

// VerificationLimits bounds code requests and confirmation attempts.
type VerificationLimits struct {
	CodeRequestMax    int
	CodeRequestIPMax  int
	CodeRequestWindow time.Duration
	ConfirmMax        int
	ConfirmWindow     time.Duration
}

// VerificationService implements the request/confirm email verification flow.
type VerificationService struct {
	codes   ports.CodeStore
	tokens  ports.TokenService
	email   ports.EmailService
	limiter ports.RateLimiter
	limits  VerificationLimits
	codeTTL time.Duration
	logger  *logrus.Logger
}

var _ ports.VerificationService = (*VerificationService)(nil)

func NewVerificationService(codes ports.CodeStore, tokens ports.TokenService, email ports.EmailService, limiter ports.RateLimiter, limits *VerificationLimits, codeTTL time.Duration, logger *logrus.Logger) *VerificationService {
	l := VerificationLimits{
		CodeRequestMax:    3,
		CodeRequestIPMax:  10,
		CodeRequestWindow: 10 * time.Minute,
		ConfirmMax:        5,
		ConfirmWindow:     10 * time.Minute,
	}
	if limits != nil {
		if limits.CodeRequestMax > 0 {
			l.CodeRequestMax = limits.CodeRequestMax
		}
		if limits.CodeRequestIPMax > 0 {
			l.CodeRequestIPMax = limits.CodeRequestIPMax
		}
		if limits.CodeRequestWindow > 0 {
			l.CodeRequestWindow = limits.CodeRequestWindow
		}
		if limits.ConfirmMax > 0 {
			l.ConfirmMax = limits.ConfirmMax
		}
		if limits.ConfirmWindow > 0 {
			l.ConfirmWindow = limits.ConfirmWindow
		}
	}
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &VerificationService{codes: codes, tokens: tokens, email: email, limiter: limiter, limits: l, codeTTL: codeTTL, logger: logger}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// RequestCode issues a fresh code and emails it. Both the address and the
// caller's network address are rate limited.
func (s *VerificationService) RequestCode(ctx context.Context, email, clientIP string) (*verification.RequestCodeResponse, error) {
	email = utils.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, &contribution.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	emailHash := utils.HashIdentity(email)

	if err := s.admit(ctx, "code:email:"+emailHash, s.limits.CodeRequestMax, s.limits.CodeRequestWindow, false); err != nil {
		return nil, err
	}
	if clientIP != "" {
		if err := s.admit(ctx, "code:ip:"+utils.HashIdentity(clientIP), s.limits.CodeRequestIPMax, s.limits.CodeRequestWindow, false); err != nil {
			return nil, err
		}
	}

	code, err := s.codes.Issue(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}
	if err := s.email.SendVerificationCode(ctx, email, code, s.codeTTL); err != nil {
		return nil, fmt.Errorf("deliver verification code: %w", err)
	}

	s.record(ctx, "code:email:"+emailHash, s.limits.CodeRequestWindow)
	if clientIP != "" {
		s.record(ctx, "code:ip:"+utils.HashIdentity(clientIP), s.limits.CodeRequestWindow)
	}
	if s.logger != nil {
		s.logger.WithField("email_hash", emailHash).Info("verification code sent")
	}
	return &verification.RequestCodeResponse{Accepted: true}, nil
}

// ConfirmCode checks a code and returns a verification token on success.
// Every attempt counts against the confirmation limit.
func (s *VerificationService) ConfirmCode(ctx context.Context, email, code string) (*verification.ConfirmCodeResponse, error) {
	email = utils.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, &contribution.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	emailHash := utils.HashIdentity(email)

	if err := s.admit(ctx, "confirm:email:"+emailHash, s.limits.ConfirmMax, s.limits.ConfirmWindow, true); err != nil {
		return nil, err
	}

	ok, err := s.codes.Verify(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		if s.logger != nil {
			s.logger.WithField("email_hash", emailHash).Info("verification code rejected")
		}
		return &verification.ConfirmCodeResponse{Verified: false}, nil
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return nil, err
	}
	return &verification.ConfirmCodeResponse{Verified: true, Token: token}, nil
}

func (s *VerificationService) admit(ctx context.Context, key string, limit int, window time.Duration, record bool) error {
	var (
		d   ports.RateLimitDecision
		err error
	)
	if record {
		d, err = s.limiter.CheckAndRecord(ctx, key, limit, window)
	} else {
		d, err = s.limiter.Check(ctx, key, limit, window)
	}
	if err != nil || !d.Allowed {
		return &contribution.RateLimitError{RetryAfter: d.RetryAfter}
	}
	return nil
}

func (s *VerificationService) record(ctx context.Context, key string, window time.Duration) {
	if err := s.limiter.Record(ctx, key, window); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("verification: failed to record rate limit slot")
	}
}
