package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sendgrid/rest"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("moderation api key not configured")

// Config configures the remote moderation client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type moderationRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// Client calls an OpenAI-compatible /v1/moderations endpoint.
type Client struct {
	cfg  Config
	http *rest.Client
}

var _ ports.ModerationClassifier = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &rest.Client{HTTPClient: &http.Client{Timeout: cfg.Timeout}},
	}
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Classify returns the provider verdict. Any transport, status, or decoding
// problem is an error so the caller can fall back.
func (c *Client) Classify(ctx context.Context, text string) (bool, []string, error) {
	if !c.Configured() {
		return false, nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(moderationRequest{Model: c.cfg.Model, Input: text})
	if err != nil {
		return false, nil, fmt.Errorf("encode moderation request: %w", err)
	}

	resp, err := c.http.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.cfg.BaseURL + "/v1/moderations",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.APIKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return false, nil, fmt.Errorf("moderation request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil, fmt.Errorf("moderation api returned status %d", resp.StatusCode)
	}

	var out moderationResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return false, nil, fmt.Errorf("decode moderation response: %w", err)
	}
	if len(out.Results) == 0 {
		return false, nil, errors.New("moderation response has no results")
	}

	res := out.Results[0]
	var categories []string
	for name, hit := range res.Categories {
		if hit {
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)
	return res.Flagged, categories, nil
}
