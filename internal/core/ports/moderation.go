package ports

import (
	"context"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/moderation"
)

// ModerationClassifier is the primary, remote content classifier.
type ModerationClassifier interface {
	Classify(ctx context.Context, text string) (flagged bool, categories []string, err error)
}

// ContentModerator classifies text, degrading to a local fallback when the
// primary classifier is unavailable.
type ContentModerator interface {
	Classify(ctx context.Context, text string) moderation.Verdict
}
