package categories

import (
	"regexp"
	"strconv"
	"strings"
)

// FallbackSlug is derived for names with nothing left after separators are stripped.
const FallbackSlug = "categoria"

var (
	whitespaceRgx = regexp.MustCompile(`\s+`)
	// URL delimiters are separators in a derived slug, like whitespace.
	separatorRgx = regexp.MustCompile(`[\s/?#]+`)
)

// Slugify derives a slug from a category name: lower-case, runs of
// whitespace and URL delimiters become a single hyphen, edge hyphens are
// trimmed. The result always passes slug validation.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separatorRgx.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return FallbackSlug
	}
	return s
}

// normalizeSlug shapes a caller-supplied slug. Delimiters are kept so an
// explicit slug containing them is rejected rather than rewritten.
func normalizeSlug(slug string) string {
	s := strings.ToLower(strings.TrimSpace(slug))
	return strings.Trim(whitespaceRgx.ReplaceAllString(s, "-"), "-")
}

// slugCandidates yields base, base-1, base-2, ... up to attempts candidates.
func slugCandidates(base string, attempts int) []string {
	out := make([]string, 0, attempts)
	out = append(out, base)
	for i := 1; len(out) < attempts; i++ {
		out = append(out, base+"-"+strconv.Itoa(i))
	}
	return out
}

// firstFreeSlug returns the first candidate not in taken.
func firstFreeSlug(base string, attempts int, taken map[string]struct{}) (string, bool) {
	for _, candidate := range slugCandidates(base, attempts) {
		if _, used := taken[candidate]; !used {
			return candidate, true
		}
	}
	return "", false
}

// isSuffixOf reports whether slug is base itself or base-N.
func isSuffixOf(slug, base string) bool {
	if slug == base {
		return true
	}
	rest, ok := strings.CutPrefix(slug, base+"-")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
