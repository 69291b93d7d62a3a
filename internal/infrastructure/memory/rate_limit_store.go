package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

var _ ports.RateLimitStore = (*RateLimitStore)(nil)

type window struct {
	stamps    []time.Time
	expiresAt time.Time
}

// RateLimitStore keeps rate-limit windows in process memory. Windows reset on
// restart; callers must treat it as best-effort.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]*window), now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *RateLimitStore) WithClock(clock func() time.Time) *RateLimitStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *RateLimitStore) Timestamps(ctx context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(w.expiresAt) {
		delete(s.windows, key)
		return nil, nil
	}
	return append([]time.Time(nil), w.stamps...), nil
}

func (s *RateLimitStore) Append(ctx context.Context, key string, at time.Time, maxEntries int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok || !s.now().Before(w.expiresAt) {
		w = &window{}
		s.windows[key] = w
	}
	w.stamps = append(w.stamps, at)
	if maxEntries > 0 && len(w.stamps) > maxEntries {
		w.stamps = append([]time.Time(nil), w.stamps[len(w.stamps)-maxEntries:]...)
	}
	w.expiresAt = s.now().Add(ttl)
	return nil
}
