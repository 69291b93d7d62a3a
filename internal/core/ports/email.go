package ports

import (
	"context"
	"time"
)

// EmailService delivers out-of-band verification codes.
type EmailService interface {
	SendVerificationCode(ctx context.Context, email, code string, validFor time.Duration) error
}
