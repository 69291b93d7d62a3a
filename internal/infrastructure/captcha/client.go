package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// Config configures the siteverify client.
type Config struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Client verifies reCAPTCHA-compatible tokens against a siteverify endpoint.
// It fails closed: every error path yields Accepted=false, Score=0.
type Client struct {
	cfg    Config
	http   *rest.Client
	logger *logrus.Logger
}

var _ ports.CaptchaValidator = (*Client)(nil)

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &rest.Client{HTTPClient: &http.Client{Timeout: cfg.Timeout}},
		logger: logger,
	}
}

// Validate posts the token to the provider. The score threshold is applied by the caller.
func (c *Client) Validate(ctx context.Context, token, clientIP string) ports.CaptchaResult {
	rejected := ports.CaptchaResult{Accepted: false, Score: 0}
	if token == "" || c.cfg.Secret == "" {
		return rejected
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("secret", c.cfg.Secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	resp, err := c.http.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.cfg.VerifyURL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		c.warn(logrus.Fields{}, err, "captcha: verification request failed")
		return rejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.warn(logrus.Fields{"status_code": resp.StatusCode}, nil, "captcha: provider returned non-success status")
		return rejected
	}

	var body siteVerifyResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		c.warn(logrus.Fields{}, err, "captcha: undecodable provider response")
		return rejected
	}
	if !body.Success {
		c.warn(logrus.Fields{"error_codes": body.ErrorCodes}, nil, "captcha: provider rejected token")
		return rejected
	}

	return ports.CaptchaResult{Accepted: true, Score: body.Score}
}

func (c *Client) warn(fields logrus.Fields, err error, msg string) {
	if c.logger == nil {
		return
	}
	entry := c.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}
