package ports

import (
	"context"
	"time"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
)

// VerificationCodeRepository stores one live code per identity hash.
type VerificationCodeRepository interface {
	// Put overwrites any existing code for the identity.
	Put(ctx context.Context, code *verification.Code) error
	// Get returns nil, nil when no live code exists.
	Get(ctx context.Context, identityHash string) (*verification.Code, error)
	// Delete reports whether a live code was removed by this call.
	Delete(ctx context.Context, identityHash string) (bool, error)
}

// ConsumedTokenRepository remembers verification tokens that already backed a submission.
type ConsumedTokenRepository interface {
	// Claim atomically marks the token used; false means another caller holds it.
	Claim(ctx context.Context, tokenHash string, ttl time.Duration) (bool, error)
	// Release drops a claim so the token can back a later submission.
	Release(ctx context.Context, tokenHash string) error
	IsConsumed(ctx context.Context, tokenHash string) (bool, error)
}

// CodeStore issues and verifies one-time codes.
type CodeStore interface {
	Issue(ctx context.Context, identity string) (string, error)
	Verify(ctx context.Context, identity, candidate string) (bool, error)
}

// TokenService issues and validates signed verification tokens.
type TokenService interface {
	Issue(email string) (string, error)
	Validate(token string) (string, error)
	ValidateFor(ctx context.Context, token, suppliedEmail string) error
	// Claim reserves the token for one submission; a second claim fails with
	// the consumed error until Release.
	Claim(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
}

// VerificationService implements the request/confirm code contract.
type VerificationService interface {
	RequestCode(ctx context.Context, email, clientIP string) (*verification.RequestCodeResponse, error)
	ConfirmCode(ctx context.Context, email, code string) (*verification.ConfirmCodeResponse, error)
}
