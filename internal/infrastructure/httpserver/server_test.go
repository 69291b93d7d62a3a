package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/health"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/httpserver"
	"github.com/avatarctic/wiki-contributions/test/mocks"
)

type failingChecker struct{}

func (failingChecker) Name() string                    { return "redis" }
func (failingChecker) Check(ctx context.Context) error { return errors.New("connection refused") }

func newServer(t *testing.T, cfg *httpserver.ServerConfig, deps httpserver.ServerDeps) *httpserver.Server {
	t.Helper()
	if cfg == nil {
		cfg = &httpserver.ServerConfig{RequestsPerSecond: 100, RequestBurst: 100, AdminAPIToken: "admin-secret"}
	}
	if deps.VerificationService == nil {
		deps.VerificationService = &mocks.VerificationServiceMock{}
	}
	if deps.ContributionService == nil {
		deps.ContributionService = &mocks.ContributionServiceMock{}
	}
	if deps.AuditService == nil {
		deps.AuditService = &mocks.AuditServiceMock{}
	}
	srv := httpserver.NewServer(cfg, nil, deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *httpserver.Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	return doFrom(srv, "", method, path, body, header)
}

// doFrom issues the request as if it came from remoteAddr on the socket.
func doFrom(srv *httpserver.Server, remoteAddr, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpserver.ErrorResponse {
	t.Helper()
	var body httpserver.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validSubmission = `{
	"section": "lore",
	"pageId": "ember-dragon",
	"pageTitle": "Ember Dragon",
	"content": "Hello world",
	"email": "user@example.com",
	"displayName": "Wanderer",
	"verificationToken": "tok",
	"captchaToken": "cap"
}`

func TestSubmitContribution_Created(t *testing.T) {
	var gotClient contribution.ClientInfo
	var gotReq *contribution.Request
	svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
		gotReq, gotClient = req, client
		return &contribution.Result{PRNumber: 9, PRURL: "https://example.test/pull/9", BranchName: "anon/lore/ember-dragon-1"}, nil
	}}
	srv := newServer(t, nil, httpserver.ServerDeps{ContributionService: svc})

	rec := doFrom(srv, "203.0.113.9:40000", http.MethodPost, "/api/v1/contributions", validSubmission, map[string]string{"User-Agent": "wiki-ui"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var res contribution.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 9, res.PRNumber)
	require.Equal(t, "anon/lore/ember-dragon-1", res.BranchName)
	require.Equal(t, "ember-dragon", gotReq.PageID)
	require.Equal(t, "203.0.113.9", gotClient.IPAddress)
	require.Equal(t, "wiki-ui", gotClient.UserAgent)
	require.Contains(t, rec.Body.String(), `"prUrl"`)
}

func TestSubmitContribution_ValidationErrors(t *testing.T) {
	svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
		t.Fatal("service must not be called for invalid input")
		return nil, nil
	}}
	srv := newServer(t, nil, httpserver.ServerDeps{ContributionService: svc})

	rec := do(srv, http.MethodPost, "/api/v1/contributions", `{"section":"lore"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_failed", decodeError(t, rec).Error)

	bad := strings.Replace(validSubmission, `"ember-dragon"`, `"../secrets"`, 1)
	rec = do(srv, http.MethodPost, "/api/v1/contributions", bad, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "pageId", decodeError(t, rec).Field)

	rec = do(srv, http.MethodPost, "/api/v1/contributions", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitContribution_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"verification", &contribution.VerificationError{Reason: "token expired"}, http.StatusUnauthorized, "verification_failed"},
		{"captcha", &contribution.CaptchaError{Score: 0.3}, http.StatusForbidden, "captcha_failed"},
		{"rate", &contribution.RateLimitError{RetryAfter: 90*time.Second + time.Millisecond}, http.StatusTooManyRequests, "rate_limited"},
		{"moderation", &contribution.ModerationError{Field: "reason", Method: "fallback"}, http.StatusUnprocessableEntity, "content_rejected"},
		{"hosting", &contribution.HostingError{LastStage: contribution.StageContentCommitted, Op: "open_pull_request", Branch: "anon/x", Err: errors.New("token ghp_secret rejected")}, http.StatusBadGateway, "submission_failed"},
		{"config", &contribution.ConfigurationError{Key: "GITHUB_TOKEN"}, http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("redis: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
				return nil, tc.err
			}}
			srv := newServer(t, nil, httpserver.ServerDeps{ContributionService: svc})

			rec := do(srv, http.MethodPost, "/api/v1/contributions", validSubmission, nil)
			require.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			require.Equal(t, tc.code, body.Error)
			require.NotContains(t, rec.Body.String(), "ghp_secret")
			require.NotContains(t, rec.Body.String(), "GITHUB_TOKEN")
			require.NotContains(t, rec.Body.String(), "redis")
		})
	}
}

func TestSubmitContribution_RetryAfterHeader(t *testing.T) {
	svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
		return nil, &contribution.RateLimitError{RetryAfter: 90*time.Second + time.Millisecond}
	}}
	srv := newServer(t, nil, httpserver.ServerDeps{ContributionService: svc})
	rec := do(srv, http.MethodPost, "/api/v1/contributions", validSubmission, nil)
	require.Equal(t, "91", rec.Header().Get("Retry-After"))
}

func TestVerificationEndpoints(t *testing.T) {
	var requestedIP string
	svc := &mocks.VerificationServiceMock{
		RequestCodeFn: func(ctx context.Context, email, clientIP string) (*verification.RequestCodeResponse, error) {
			requestedIP = clientIP
			return &verification.RequestCodeResponse{Accepted: true}, nil
		},
		ConfirmCodeFn: func(ctx context.Context, email, code string) (*verification.ConfirmCodeResponse, error) {
			if code == "123456" {
				return &verification.ConfirmCodeResponse{Verified: true, Token: "signed"}, nil
			}
			return &verification.ConfirmCodeResponse{Verified: false}, nil
		},
	}
	srv := newServer(t, nil, httpserver.ServerDeps{VerificationService: svc})

	rec := doFrom(srv, "198.51.100.4:40000", http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"accepted":true}`, rec.Body.String())
	require.Equal(t, "198.51.100.4", requestedIP)

	rec = do(srv, http.MethodPost, "/api/v1/verification/confirm", `{"email":"user@example.com","code":"123456"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"verified":true,"token":"signed"}`, rec.Body.String())

	rec = do(srv, http.MethodPost, "/api/v1/verification/confirm", `{"email":"user@example.com","code":"654321"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"verified":false}`, rec.Body.String())

	rec = do(srv, http.MethodPost, "/api/v1/verification/confirm", `{"email":"user@example.com","code":"12ab56"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "code", decodeError(t, rec).Field)

	rec = do(srv, http.MethodPost, "/api/v1/verification/request", `{"email":"nope"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email", decodeError(t, rec).Field)
}

func TestAdminAudit(t *testing.T) {
	var seen *audit.Filter
	auditSvc := &mocks.AuditServiceMock{ListFn: func(ctx context.Context, f *audit.Filter) ([]*audit.ContributionAudit, int, error) {
		seen = f
		return []*audit.ContributionAudit{{Outcome: audit.OutcomeFailed, LastStage: "ContentCommitted", Branch: "anon/lore/x-1"}}, 1, nil
	}}
	srv := newServer(t, nil, httpserver.ServerDeps{AuditService: auditSvc})

	rec := do(srv, http.MethodGet, "/api/v1/admin/contributions?outcome=failed&limit=10", "", map[string]string{"Authorization": "Bearer admin-secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "anon/lore/x-1")
	require.Equal(t, audit.OutcomeFailed, *seen.Outcome)
	require.Equal(t, 10, seen.Limit)

	rec = do(srv, http.MethodGet, "/api/v1/admin/contributions", "", map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodGet, "/api/v1/admin/contributions", "", nil)
	require.GreaterOrEqual(t, rec.Code, 400)

	rec = do(srv, http.MethodGet, "/api/v1/admin/contributions?outcome=bogus", "", map[string]string{"Authorization": "Bearer admin-secret"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAudit_DisabledWithoutToken(t *testing.T) {
	srv := newServer(t, &httpserver.ServerConfig{RequestsPerSecond: 100, RequestBurst: 100}, httpserver.ServerDeps{})
	rec := do(srv, http.MethodGet, "/api/v1/admin/contributions", "", map[string]string{"Authorization": "Bearer anything"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIThrottle(t *testing.T) {
	srv := newServer(t, &httpserver.ServerConfig{RequestsPerSecond: 0.001, RequestBurst: 2}, httpserver.ServerDeps{})
	for i := 0; i < 2; i++ {
		rec := do(srv, http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec := do(srv, http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other clients and non-API routes are unaffected
	rec = doFrom(srv, "198.51.100.77:40000", http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	var seen []string
	svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
		seen = append(seen, client.IPAddress)
		return &contribution.Result{PRNumber: 1}, nil
	}}
	srv := newServer(t, nil, httpserver.ServerDeps{ContributionService: svc})

	for _, forged := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		rec := doFrom(srv, "203.0.113.50:40000", http.MethodPost, "/api/v1/contributions", validSubmission, map[string]string{
			"X-Forwarded-For": forged,
			"X-Real-IP":       forged,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, []string{"203.0.113.50", "203.0.113.50", "203.0.113.50"}, seen)
}

func TestAPIThrottle_ForwardedHeadersDoNotResetBucket(t *testing.T) {
	srv := newServer(t, &httpserver.ServerConfig{RequestsPerSecond: 0.001, RequestBurst: 1}, httpserver.ServerDeps{})

	rec := doFrom(srv, "203.0.113.60:40000", http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, map[string]string{"X-Forwarded-For": "1.1.1.1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = doFrom(srv, "203.0.113.60:40000", http.MethodPost, "/api/v1/verification/request", `{"email":"user@example.com"}`, map[string]string{"X-Forwarded-For": "2.2.2.2"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIP_TrustedProxyForwardsClient(t *testing.T) {
	var seen []string
	svc := &mocks.ContributionServiceMock{SubmitFn: func(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error) {
		seen = append(seen, client.IPAddress)
		return &contribution.Result{PRNumber: 1}, nil
	}}
	srv := newServer(t, &httpserver.ServerConfig{
		RequestsPerSecond: 100,
		RequestBurst:      100,
		TrustedProxies:    []string{"10.0.0.0/8", "not-a-cidr"},
	}, httpserver.ServerDeps{ContributionService: svc})

	rec := doFrom(srv, "10.1.2.3:40000", http.MethodPost, "/api/v1/contributions", validSubmission, map[string]string{"X-Forwarded-For": "198.51.100.20"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// a client outside the trusted range cannot pick its own address
	rec = doFrom(srv, "203.0.113.70:40000", http.MethodPost, "/api/v1/contributions", validSubmission, map[string]string{"X-Forwarded-For": "198.51.100.20"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Equal(t, []string{"198.51.100.20", "203.0.113.70"}, seen)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, nil, httpserver.ServerDeps{HealthCheckers: []ports.HealthChecker{health.NewStaticHealthChecker("memory-store")}})
	rec := do(srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report httpserver.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "healthy", report.Status)
	require.Equal(t, "healthy", report.Dependencies["memory-store"].Status)

	srv = newServer(t, nil, httpserver.ServerDeps{HealthCheckers: []ports.HealthChecker{failingChecker{}}})
	rec = do(srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, nil, httpserver.ServerDeps{})
	_ = do(srv, http.MethodGet, "/health", "", nil)
	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
