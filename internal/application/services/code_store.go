package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/crypto"
	"github.com/avatarctic/wiki-contributions/internal/utils"
)

const (
	codeDigits     = 6
	DefaultCodeTTL = 10 * time.Minute
)

// CodeStore issues encrypted one-time codes keyed by a hashed identity.
// A code is removed only by a successful Verify or by expiry.
type CodeStore struct {
	repo   ports.VerificationCodeRepository
	cipher *crypto.SecretCipher
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

var _ ports.CodeStore = (*CodeStore)(nil)

func NewCodeStore(repo ports.VerificationCodeRepository, cipher *crypto.SecretCipher, ttl time.Duration, logger *logrus.Logger) *CodeStore {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeStore{repo: repo, cipher: cipher, ttl: ttl, logger: logger, now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *CodeStore) WithClock(clock func() time.Time) *CodeStore {
	s.now = clock
	return s
}

// Issue generates a fresh code for identity, replacing any live one.
func (s *CodeStore) Issue(ctx context.Context, identity string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	encrypted, err := s.cipher.EncryptString(code)
	if err != nil {
		return "", fmt.Errorf("encrypt verification code: %w", err)
	}

	now := s.now()
	rec := &verification.Code{
		IdentityHash:  utils.HashIdentity(identity),
		EncryptedCode: encrypted,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity_hash": rec.IdentityHash, "expires_at": rec.ExpiresAt}).Debug("verification code issued")
	}
	return code, nil
}

// Verify reports whether candidate matches the live code for identity.
// Missing, expired or undecryptable codes never match. The record is deleted
// only on a match, and only the caller whose delete succeeds is accepted.
func (s *CodeStore) Verify(ctx context.Context, identity, candidate string) (bool, error) {
	hash := utils.HashIdentity(identity)
	rec, err := s.repo.Get(ctx, hash)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.IsExpired(s.now()) {
		return false, nil
	}

	stored, err := s.cipher.DecryptString(rec.EncryptedCode)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("identity_hash", hash).WithError(err).Warn("verification code could not be decrypted")
		}
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) != 1 {
		return false, nil
	}

	deleted, err := s.repo.Delete(ctx, hash)
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func generateCode() (string, error) {
	upper := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
