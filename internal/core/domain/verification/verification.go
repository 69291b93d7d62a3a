package verification

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose is the only purpose a verification token may carry.
const TokenPurpose = "email-verification"

// Code is a one-time verification code at rest. The code itself is only ever
// stored encrypted, and the identity only as a hash.
type Code struct {
	IdentityHash  string    `json:"identity_hash"`
	EncryptedCode string    `json:"encrypted_code"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// IsExpired checks if the code has expired relative to now.
func (c *Code) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenClaims are the signed claims of a verification token.
type TokenClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// RequestCodeRequest asks for a code to be delivered to email.
type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// RequestCodeResponse is returned by the request-code endpoint.
type RequestCodeResponse struct {
	Accepted bool `json:"accepted"`
}

// ConfirmCodeRequest submits a delivered code.
type ConfirmCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// ConfirmCodeResponse carries the verification token on success.
type ConfirmCodeResponse struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token,omitempty"`
}
