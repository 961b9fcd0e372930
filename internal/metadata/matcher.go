package metadata

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Matches reports whether needle occurs in haystack, ignoring case. Both
// arguments are expected to be normalized the same way. An empty needle
// never matches.
func Matches(needle, haystack string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Distance is the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
