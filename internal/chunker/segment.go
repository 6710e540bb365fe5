package chunker

import (
	"unicode"
	"unicode/utf8"
)

// segment is a located span of the original source text. Offsets are always
// absolute byte positions into the full source so that chunk offsets never
// need to be reconstructed by accumulating deltas.
type segment struct {
	start int
	end   int
}

// wordSegments returns the spans of whitespace-delimited words inside
// text[lo:hi].
func wordSegments(text string, lo, hi int) []segment {
	var segs []segment
	inWord := false
	start := lo
	for i := lo; i < hi; {
		r, size := utf8.DecodeRuneInString(text[i:hi])
		if unicode.IsSpace(r) {
			if inWord {
				segs = append(segs, segment{start: start, end: i})
				inWord = false
			}
		} else if !inWord {
			start = i
			inWord = true
		}
		i += size
	}
	if inWord {
		segs = append(segs, segment{start: start, end: hi})
	}
	return segs
}

// isTerminal reports whether r ends a sentence.
func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sentenceSegments returns the spans of sentences inside text[lo:hi].
// A sentence ends at a run of terminal punctuation followed by whitespace or
// end of input; trailing text without a terminator forms a final sentence.
// Leading and trailing whitespace is excluded from each span.
func sentenceSegments(text string, lo, hi int) []segment {
	var segs []segment
	i := lo
	for i < hi {
		// Skip leading whitespace.
		for i < hi {
			r, size := utf8.DecodeRuneInString(text[i:hi])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		if i >= hi {
			break
		}
		start := i
		end := hi
		for j := i; j < hi; {
			r, size := utf8.DecodeRuneInString(text[j:hi])
			j += size
			if !isTerminal(r) {
				continue
			}
			// Swallow consecutive terminal punctuation ("?!", "...").
			for j < hi {
				r2, size2 := utf8.DecodeRuneInString(text[j:hi])
				if !isTerminal(r2) {
					break
				}
				j += size2
			}
			if j >= hi {
				end = hi
				break
			}
			if r2, _ := utf8.DecodeRuneInString(text[j:hi]); unicode.IsSpace(r2) {
				end = j
				break
			}
		}
		segs = append(segs, trimSegment(text, segment{start: start, end: end}))
		i = end
	}
	return segs
}

// paragraphSegments returns the spans of blank-line-separated paragraphs.
// A blank line is a line containing only whitespace.
func paragraphSegments(text string) []segment {
	var segs []segment
	n := len(text)
	i := 0
	for i < n {
		// Find the start of the next non-blank line.
		lineStart := i
		blank := true
		j := i
		for ; j < n && text[j] != '\n'; j++ {
			if text[j] != ' ' && text[j] != '\t' && text[j] != '\r' {
				blank = false
			}
		}
		if blank {
			i = j + 1
			continue
		}
		// Extend until the next blank line or end of input.
		start := lineStart
		end := j
		i = j + 1
		for i < n {
			lineEnd := i
			blankLine := true
			for ; lineEnd < n && text[lineEnd] != '\n'; lineEnd++ {
				if text[lineEnd] != ' ' && text[lineEnd] != '\t' && text[lineEnd] != '\r' {
					blankLine = false
				}
			}
			if blankLine {
				break
			}
			end = lineEnd
			i = lineEnd + 1
		}
		segs = append(segs, trimSegment(text, segment{start: start, end: end}))
	}
	return segs
}

// trimSegment shrinks a span to exclude leading and trailing whitespace.
func trimSegment(text string, s segment) segment {
	for s.start < s.end {
		r, size := utf8.DecodeRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.start += size
	}
	for s.start < s.end {
		r, size := utf8.DecodeLastRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}
