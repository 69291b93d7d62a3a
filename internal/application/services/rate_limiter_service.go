package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// MaxStoredTimestamps bounds the per-identity history. With bursty traffic
// the window becomes an approximation once more than this many actions land.
const MaxStoredTimestamps = 10

// RateLimiterService is a sliding-window limiter over a ports.RateLimitStore.
// Check never mutates the window; Record is the explicit accounting step.
type RateLimiterService struct {
	store  ports.RateLimitStore
	logger *logrus.Logger
	now    func() time.Time
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

func NewRateLimiterService(store ports.RateLimitStore, logger *logrus.Logger) *RateLimiterService {
	return &RateLimiterService{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *RateLimiterService) WithClock(clock func() time.Time) *RateLimiterService {
	s.now = clock
	return s
}

// Check reports whether one more action fits in the window. A store failure
// denies the action.
func (s *RateLimiterService) Check(ctx context.Context, identityHash string, maxActions int, window time.Duration) (ports.RateLimitDecision, error) {
	stamps, err := s.store.Timestamps(ctx, identityHash)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("key", identityHash).WithError(err).Error("rate limiter: failed to read window")
		}
		return ports.RateLimitDecision{Allowed: false, RetryAfter: window}, fmt.Errorf("read rate limit window: %w", err)
	}

	now := s.now()
	cutoff := now.Add(-window)
	var live []time.Time
	for _, ts := range stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	if len(live) >= maxActions {
		oldest := live[0]
		for _, ts := range live[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		retry := window - now.Sub(oldest)
		if retry < 0 {
			retry = 0
		}
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"key": identityHash, "count": len(live), "max": maxActions, "retry_after": retry}).Debug("rate limiter: window full")
		}
		return ports.RateLimitDecision{Allowed: false, RetryAfter: retry}, nil
	}
	return ports.RateLimitDecision{Allowed: true, Remaining: maxActions - len(live)}, nil
}

// Record appends the current instant to the window.
func (s *RateLimiterService) Record(ctx context.Context, identityHash string, window time.Duration) error {
	if err := s.store.Append(ctx, identityHash, s.now(), MaxStoredTimestamps, window); err != nil {
		if s.logger != nil {
			s.logger.WithField("key", identityHash).WithError(err).Error("rate limiter: failed to record action")
		}
		return fmt.Errorf("record rate limit action: %w", err)
	}
	return nil
}

// CheckAndRecord checks and, when allowed, records in one step. Used where
// every attempt counts, such as code confirmation.
func (s *RateLimiterService) CheckAndRecord(ctx context.Context, identityHash string, maxActions int, window time.Duration) (ports.RateLimitDecision, error) {
	d, err := s.Check(ctx, identityHash, maxActions, window)
	if err != nil || !d.Allowed {
		return d, err
	}
	if err := s.Record(ctx, identityHash, window); err != nil {
		return ports.RateLimitDecision{Allowed: false, RetryAfter: window}, err
	}
	d.Remaining--
	return d, nil
}
