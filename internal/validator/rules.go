package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SlugRgx matches slugs: no whitespace, no URL delimiters, no edge hyphens.
var SlugRgx = regexp.MustCompile(`^[^\s/?#-](?:[^\s/?#]*[^\s/?#-])?$`)

// NotBlank returns true if a string is not empty or contains only whitespace.
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxRunes returns true if a string is less than or equal to a maximum number of n
func MaxRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

// Matches returns true if a string value matches a specific regexp pattern.
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// In returns true if a value is in a list of values.
func In[T comparable](value T, list ...T) bool {
	for i := range list {
		if value == list[i] {
			return true
		}
	}
	return false
}

// Positive returns true if a non-nil id is strictly positive.
func Positive(id *int64) bool {
	return id == nil || *id > 0
}
