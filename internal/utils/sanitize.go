package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrTooShort = errors.New("value is too short")
)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// StripTags removes anything that looks like an HTML tag and trims the result.
func StripTags(s string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(s, ""))
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

// SanitizeLine strips tags and collapses whitespace before truncating to limit runes.
func SanitizeLine(s string, limit int) string {
	s = StripTags(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(Truncate(s, limit))
}

// RequireMinLength returns ErrTooShort when s has fewer than least runes.
func RequireMinLength(s string, least int) error {
	if utf8.RuneCountInString(s) < least {
		return ErrTooShort
	}
	return nil
}
