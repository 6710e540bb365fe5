// Package budget provides token estimation and budget-bounded truncation for
// assembled context. Because the pipeline supports multiple LLM backends with
// different tokenizers, it uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code). This is an approximation,
// not a tokenizer count, and deliberately under-estimates to leave headroom
// for model-specific overhead.
package budget

import (
	"strings"
	"unicode/utf8"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for assembled retrieval
	// context. Conservative enough to fit within 8k-context models while
	// leaving room for the query, instructions, and output.
	DefaultMaxContextTokens = 4000

	// boundaryWindow is the trailing fraction of the character budget in
	// which a sentence or line boundary is preferred over a hard cut.
	boundaryWindow = 0.2

	// ellipsis marks a hard truncation.
	ellipsis = "..."
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Truncate trims text to fit within maxTokens. When the text already fits it
// is returned unchanged. Otherwise the cut prefers the nearest preceding
// sentence or line boundary, provided that boundary falls within the last 20%
// of the character budget; without such a boundary the text is hard-truncated
// at the budget and an ellipsis marker is appended.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * charsPerToken
	if len(text) <= limit {
		return text
	}

	cut := text[:runeFloor(text, limit)]
	if at := lastBoundary(cut); at >= 0 && float64(at) >= float64(limit)*(1-boundaryWindow) {
		return strings.TrimRight(cut[:at], " \t")
	}
	return strings.TrimRight(cut, " \t") + ellipsis
}

// lastBoundary returns the index just past the last sentence terminal or
// newline in s, or -1 when s has none.
func lastBoundary(s string) int {
	best := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			best = i + 1
		case '.', '!', '?':
			// A terminal only counts when followed by whitespace or the cut
			// point itself, so "3.14" stays intact.
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' || s[i+1] == '\t' {
				best = i + 1
			}
		}
	}
	return best
}

// runeFloor returns the largest byte offset ≤ limit that does not split a
// UTF-8 sequence.
func runeFloor(s string, limit int) int {
	if limit >= len(s) {
		return len(s)
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return limit
}
