package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/wiki-contributions/internal/application/services"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/memory"
	"github.com/avatarctic/wiki-contributions/test/mocks"
)

type verificationFixture struct {
	svc     *impl.VerificationService
	tokens  *impl.VerificationTokenService
	limiter *impl.RateLimiterService
	email   *mocks.EmailServiceMock
	clock   *fakeClock
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	clock := newFakeClock()
	codes := newCodeStore(t, "encryption-secret", memory.NewCache(), clock)
	tokens := newTokenService("signing-secret", clock)
	limiter, _ := newLimiter(clock)
	email := &mocks.EmailServiceMock{}
	svc := impl.NewVerificationService(codes, tokens, email, limiter, nil, 10*time.Minute, nil)
	return &verificationFixture{svc: svc, tokens: tokens, limiter: limiter, email: email, clock: clock}
}

func TestVerification_RequestAndConfirm(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	resp, err := f.svc.RequestCode(ctx, "User@Example.com", "198.51.100.1")
	require.NoError(t, err)
	require.True(t, resp.Accepted)
	require.Equal(t, "user@example.com", f.email.LastEmail)
	require.Len(t, f.email.LastCode, 6)

	confirm, err := f.svc.ConfirmCode(ctx, "user@example.com", f.email.LastCode)
	require.NoError(t, err)
	require.True(t, confirm.Verified)
	require.NotEmpty(t, confirm.Token)

	email, err := f.tokens.Validate(confirm.Token)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", email)

	again, err := f.svc.ConfirmCode(ctx, "user@example.com", f.email.LastCode)
	require.NoError(t, err)
	require.False(t, again.Verified)
	require.Empty(t, again.Token)
}

func TestVerification_WrongCode(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestCode(ctx, "user@example.com", "")
	require.NoError(t, err)

	wrong := "000000"
	if f.email.LastCode == wrong {
		wrong = "999999"
	}
	resp, err := f.svc.ConfirmCode(ctx, "user@example.com", wrong)
	require.NoError(t, err)
	require.False(t, resp.Verified)
}

func TestVerification_InvalidEmail(t *testing.T) {
	f := newVerificationFixture(t)
	_, err := f.svc.RequestCode(context.Background(), "not-an-email", "")
	var vErr *contribution.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, 0, f.email.Sent)
}

func TestVerification_RequestRateLimited(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.RequestCode(ctx, "user@example.com", "198.51.100.1")
		require.NoError(t, err)
	}
	_, err := f.svc.RequestCode(ctx, "user@example.com", "198.51.100.1")
	var rlErr *contribution.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	require.Equal(t, 3, f.email.Sent)

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.RequestCode(ctx, "user@example.com", "198.51.100.1")
	require.NoError(t, err)
}

func TestVerification_RequestRateLimitedPerIP(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := f.svc.RequestCode(ctx, fmt.Sprintf("user%d@example.com", i), "198.51.100.1")
		require.NoError(t, err)
	}
	_, err := f.svc.RequestCode(ctx, "another@example.com", "198.51.100.1")
	var rlErr *contribution.RateLimitError
	require.ErrorAs(t, err, &rlErr)
}

func TestVerification_FailedDeliveryDoesNotConsumeQuota(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	f.email.SendVerificationCodeFn = func(ctx context.Context, email, code string, validFor time.Duration) error {
		return errors.New("sendgrid down")
	}
	for i := 0; i < 5; i++ {
		_, err := f.svc.RequestCode(ctx, "user@example.com", "")
		require.Error(t, err)
	}
	f.email.SendVerificationCodeFn = nil
	_, err := f.svc.RequestCode(ctx, "user@example.com", "")
	require.NoError(t, err)
}

func TestVerification_ConfirmAttemptsLimited(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestCode(ctx, "user@example.com", "")
	require.NoError(t, err)
	code := f.email.LastCode
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}

	for i := 0; i < 5; i++ {
		resp, err := f.svc.ConfirmCode(ctx, "user@example.com", wrong)
		require.NoError(t, err)
		require.False(t, resp.Verified)
	}
	_, err = f.svc.ConfirmCode(ctx, "user@example.com", code)
	var rlErr *contribution.RateLimitError
	require.ErrorAs(t, err, &rlErr)
}

// Request a code, confirm it, then submit with the issued token.
func TestScenario_VerifiedSubmissionCompletes(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, "user@example.com", client.IPAddress)
	require.NoError(t, err)
	confirm, err := f.svc.ConfirmCode(ctx, "user@example.com", f.email.LastCode)
	require.NoError(t, err)
	require.True(t, confirm.Verified)

	hosting := &mocks.HostingGatewayMock{}
	hosting.OpenPullRequestFn = func(ctx context.Context, title, body, head, base string) (*ports.PullRequest, error) {
		return &ports.PullRequest{Number: 101, URL: "https://example.test/pull/101"}, nil
	}
	audits := &mocks.AuditRepositoryMock{}
	svc := impl.NewContributionService(
		f.tokens,
		&mocks.CaptchaValidatorMock{Result: ports.CaptchaResult{Accepted: true, Score: 0.9}},
		f.limiter,
		impl.NewContentModerator(nil, nil, 0, nil),
		hosting,
		impl.NewAuditService(audits, nil),
		nil,
		nil,
	).WithClock(f.clock.Now)

	req := validRequest()
	req.VerificationToken = confirm.Token
	res, err := svc.Submit(ctx, req, client)
	require.NoError(t, err)
	require.Equal(t, 101, res.PRNumber)
	require.Equal(t, "https://example.test/pull/101", res.PRURL)
	require.Contains(t, res.BranchName, "ember-dragon")
	require.Contains(t, res.BranchName, fmt.Sprintf("-%d", f.clock.Now().UnixMilli()))
	require.Equal(t, audit.OutcomeCompleted, audits.Last().Outcome)

	// the token backed a submission and cannot be replayed
	_, err = svc.Submit(ctx, req, client)
	var vErr *contribution.VerificationError
	require.ErrorAs(t, err, &vErr)
	require.ErrorIs(t, err, impl.ErrTokenConsumed)
}

func TestScenario_LowCaptchaScoreCreatesNoBranch(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, "user@example.com", client.IPAddress)
	require.NoError(t, err)
	confirm, err := f.svc.ConfirmCode(ctx, "user@example.com", f.email.LastCode)
	require.NoError(t, err)

	hosting := &mocks.HostingGatewayMock{}
	svc := impl.NewContributionService(
		f.tokens,
		&mocks.CaptchaValidatorMock{Result: ports.CaptchaResult{Accepted: true, Score: 0.3}},
		f.limiter,
		impl.NewContentModerator(nil, nil, 0, nil),
		hosting,
		nil,
		nil,
		nil,
	)

	req := validRequest()
	req.VerificationToken = confirm.Token
	_, err = svc.Submit(ctx, req, client)
	var cErr *contribution.CaptchaError
	require.ErrorAs(t, err, &cErr)
	require.False(t, hosting.Called("CreateBranch"))

	// the token was not consumed by the rejected attempt
	require.NoError(t, f.tokens.ValidateFor(ctx, confirm.Token, "user@example.com"))
}
