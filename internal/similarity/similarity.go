// Package similarity provides the string-distance primitives and name
// normalization used by the matching pipeline. Everything here is pure:
// normalizers own a bounded memo cache but no other state, and nothing
// touches storage.
package similarity

import (
	"github.com/agnivade/levenshtein"
)

// EditDistance returns the Levenshtein distance between a and b:
// insertions, deletions and substitutions all cost 1. Symmetric, and
// zero when the strings are equal. Operates on runes, not bytes.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Ratio returns a similarity score in [0, 1] derived from edit
// distance: 1 - distance/max(len). Two empty strings are identical
// (1.0); one empty string matches nothing (0.0).
func Ratio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0.0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(EditDistance(a, b))/float64(maxLen)
}
