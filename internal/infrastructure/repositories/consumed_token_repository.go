package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

const consumedTokenPrefix = "consumed_token" //nolint:gosec

var _ ports.ConsumedTokenRepository = (*ConsumedTokenRepository)(nil)

// ConsumedTokenRepository records verification tokens that are backing, or
// already backed, a submission. Records expire together with the token.
type ConsumedTokenRepository struct {
	cache ports.Cache
}

func NewConsumedTokenRepository(cache ports.Cache) *ConsumedTokenRepository {
	return &ConsumedTokenRepository{cache: cache}
}

func (r *ConsumedTokenRepository) key(tokenHash string) string {
	return consumedTokenPrefix + ":" + tokenHash
}

func (r *ConsumedTokenRepository) Claim(ctx context.Context, tokenHash string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	ok, err := r.cache.SetIfAbsent(ctx, r.key(tokenHash), []byte("1"), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return ok, nil
}

func (r *ConsumedTokenRepository) Release(ctx context.Context, tokenHash string) error {
	if _, err := r.cache.Delete(ctx, r.key(tokenHash)); err != nil {
		return fmt.Errorf("failed to release token: %w", err)
	}
	return nil
}

func (r *ConsumedTokenRepository) IsConsumed(ctx context.Context, tokenHash string) (bool, error) {
	_, ok, err := r.cache.Get(ctx, r.key(tokenHash))
	if err != nil {
		return false, fmt.Errorf("failed to look up consumed token: %w", err)
	}
	return ok, nil
}
