package contribution

import "regexp"

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// IsSlug reports whether s is safe to use as a path and branch segment.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}
