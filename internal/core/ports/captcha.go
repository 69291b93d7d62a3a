package ports

import "context"

// CaptchaResult is the outcome of an external human-verification call.
type CaptchaResult struct {
	Accepted bool
	Score    float64
}

// CaptchaValidator verifies a client-side captcha token.
// Any failure to reach the provider yields Accepted=false.
type CaptchaValidator interface {
	Validate(ctx context.Context, token, clientIP string) CaptchaResult
}
