package contribution

import (
	"fmt"
	"time"
)

// ValidationError reports malformed or missing input. Safe to retry after correction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// VerificationError reports a missing, expired, consumed or mismatched verification token.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	return "email verification failed: " + e.Reason
}

func (e *VerificationError) Unwrap() error { return e.Err }

// CaptchaError reports a failed human check.
type CaptchaError struct {
	Score float64
}

func (e *CaptchaError) Error() string {
	return "captcha verification failed"
}

// RateLimitError reports that the caller exceeded its submission quota.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// ModerationError reports content rejected by moderation and names the field.
type ModerationError struct {
	Field  string
	Method string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("%s was rejected by content moderation", e.Field)
}

// HostingError wraps any failure after the pipeline started writing to the
// hosting API. LastStage is the last stage that completed successfully.
type HostingError struct {
	LastStage Stage
	Op        string
	Branch    string
	Err       error
}

func (e *HostingError) Error() string {
	return fmt.Sprintf("hosting %s failed after stage %s: %v", e.Op, e.LastStage, e.Err)
}

func (e *HostingError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing required secret or setting.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required configuration %s is not set", e.Key)
}
