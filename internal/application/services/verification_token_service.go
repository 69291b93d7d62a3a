package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/utils"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	ErrTokenExpired  = errors.New("verification token expired")
	ErrTokenInvalid  = errors.New("verification token invalid")
	ErrTokenConsumed = errors.New("verification token already used")
)

// VerificationTokenService signs and checks "this email was verified" tokens.
// Tokens are single-use: Claim reserves one for exactly one submission.
type VerificationTokenService struct {
	secret   []byte
	ttl      time.Duration
	consumed ports.ConsumedTokenRepository
	logger   *logrus.Logger
	now      func() time.Time
}

var _ ports.TokenService = (*VerificationTokenService)(nil)

func NewVerificationTokenService(secret string, ttl time.Duration, consumed ports.ConsumedTokenRepository, logger *logrus.Logger) *VerificationTokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &VerificationTokenService{secret: []byte(secret), ttl: ttl, consumed: consumed, logger: logger, now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *VerificationTokenService) WithClock(clock func() time.Time) *VerificationTokenService {
	s.now = clock
	return s
}

func (s *VerificationTokenService) Issue(email string) (string, error) {
	now := s.now()
	claims := verification.TokenClaims{
		Email:   utils.NormalizeEmail(email),
		Purpose: verification.TokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, expiry and purpose and returns the embedded email.
func (s *VerificationTokenService) Validate(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// ValidateFor is Validate plus the binding to the submitted email and the
// single-use check.
func (s *VerificationTokenService) ValidateFor(ctx context.Context, tokenString, suppliedEmail string) error {
	email, err := s.Validate(tokenString)
	if err != nil {
		return err
	}
	if email != utils.NormalizeEmail(suppliedEmail) {
		return ErrTokenInvalid
	}
	if s.consumed == nil {
		return nil
	}
	used, err := s.consumed.IsConsumed(ctx, utils.HashToken(tokenString))
	if err != nil {
		return fmt.Errorf("check token consumption: %w", err)
	}
	if used {
		return ErrTokenConsumed
	}
	return nil
}

// Claim reserves the token for one submission for the rest of its validity.
// The reservation is a single atomic write, so of two concurrent submissions
// with the same token exactly one gets nil and the other ErrTokenConsumed.
func (s *VerificationTokenService) Claim(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if s.consumed == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return ErrTokenExpired
	}
	ok, err := s.consumed.Claim(ctx, utils.HashToken(tokenString), ttl)
	if err != nil {
		return fmt.Errorf("claim token: %w", err)
	}
	if !ok {
		return ErrTokenConsumed
	}
	return nil
}

// Release returns a claimed token to the unused state.
func (s *VerificationTokenService) Release(ctx context.Context, tokenString string) error {
	if s.consumed == nil {
		return nil
	}
	return s.consumed.Release(ctx, utils.HashToken(tokenString))
}

func (s *VerificationTokenService) parse(tokenString string) (*verification.TokenClaims, error) {
	claims := &verification.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Purpose != verification.TokenPurpose || claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
