package services

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/moderation"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// defaultDenylist is the local fallback vocabulary. Entries are matched as
// whole words (or phrases) after normalization.
var defaultDenylist = []string{
	// link and marketing spam
	"buy now", "click here", "free money", "casino bonus", "cheap gold",
	"gold for sale", "account for sale", "earn cash fast", "work from home",
	"viagra", "cialis", "crypto giveaway", "limited offer",
	// profanity
	"fuck", "fucking", "shit", "bitch", "cunt", "asshole", "bastard",
	"dickhead", "motherfucker",
	// harassment
	"kill yourself", "kys",
}

var leetReplacer = strings.NewReplacer(
	"0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t", "@", "a", "$", "s", "!", "i",
)

// DenylistClassifier is the deterministic local moderation fallback.
type DenylistClassifier struct {
	phrases []string
}

func NewDenylistClassifier(extra ...string) *DenylistClassifier {
	phrases := make([]string, 0, len(defaultDenylist)+len(extra))
	for _, p := range append(append([]string(nil), defaultDenylist...), extra...) {
		if n := normalizeForMatch(p, false); n != "" {
			phrases = append(phrases, n)
		}
	}
	return &DenylistClassifier{phrases: phrases}
}

// Match returns the denylisted phrases found in text, checked both as written
// and with common character substitutions undone.
func (d *DenylistClassifier) Match(text string) []string {
	plain := " " + normalizeForMatch(text, false) + " "
	leet := " " + normalizeForMatch(text, true) + " "
	var hits []string
	for _, p := range d.phrases {
		needle := " " + p + " "
		if strings.Contains(plain, needle) || strings.Contains(leet, needle) {
			hits = append(hits, p)
		}
	}
	return hits
}

// normalizeForMatch lowercases and reduces everything that is not a letter to
// single spaces.
func normalizeForMatch(s string, leet bool) string {
	s = strings.ToLower(s)
	if leet {
		s = leetReplacer.Replace(s)
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	return strings.Join(fields, " ")
}

var moderationVerdicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moderation_verdicts_total",
		Help: "Content moderation verdicts by classifier and result",
	},
	[]string{"method", "flagged"},
)

func init() {
	prometheus.MustRegister(moderationVerdicts)
}

// ContentModerator uses the primary classifier when one is configured and
// degrades to the denylist on any primary failure. Both verdicts are final.
type ContentModerator struct {
	primary  ports.ModerationClassifier
	fallback *DenylistClassifier
	timeout  time.Duration
	logger   *logrus.Logger
}

var _ ports.ContentModerator = (*ContentModerator)(nil)

// NewContentModerator builds a moderator. A nil primary means fallback-only mode.
func NewContentModerator(primary ports.ModerationClassifier, fallback *DenylistClassifier, timeout time.Duration, logger *logrus.Logger) *ContentModerator {
	if fallback == nil {
		fallback = NewDenylistClassifier()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ContentModerator{primary: primary, fallback: fallback, timeout: timeout, logger: logger}
}

func (m *ContentModerator) Classify(ctx context.Context, text string) moderation.Verdict {
	if m.primary != nil {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		flagged, categories, err := m.primary.Classify(callCtx, text)
		cancel()
		if err == nil {
			return m.observe(moderation.Verdict{Flagged: flagged, Method: moderation.MethodPrimary, Categories: categories})
		}
		if m.logger != nil {
			m.logger.WithError(err).Warn("moderation: primary classifier unavailable, using fallback")
		}
	}

	hits := m.fallback.Match(text)
	v := moderation.Verdict{Flagged: len(hits) > 0, Method: moderation.MethodFallback}
	if v.Flagged {
		v.Categories = []string{"denylist"}
	}
	return m.observe(v)
}

func (m *ContentModerator) observe(v moderation.Verdict) moderation.Verdict {
	flagged := "false"
	if v.Flagged {
		flagged = "true"
	}
	moderationVerdicts.WithLabelValues(v.Method.String(), flagged).Inc()
	return v
}
