// Package metrics derives cheap local text features and the deterministic
// token estimates shared by the prompt windowing and memory budgeting layers.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: countWords(s),
		Lines: countLines(s),
	}
}

// runesPerToken is the chars-per-token ratio used everywhere a token estimate
// is needed. Coarse but stable; changing it requires updating the guard tests
// in windowing and memory.
const runesPerToken = 4

// EstimateTokens returns a deterministic token estimate for s. Non-empty
// strings estimate to at least one token.
func EstimateTokens(s string) int {
	r := utf8.RuneCountInString(s)
	if r == 0 {
		return 0
	}
	n := r / runesPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// countWords counts words split on Unicode whitespace.
func countWords(s string) int {
	return len(strings.Fields(s))
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
