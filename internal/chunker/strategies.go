package chunker

import (
	"context"
	"math"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// splitFixed produces word-count windows of sizeWords advancing by
// sizeWords−overlapWords. Chunk content is the original source slice
// covering the window's words, so offsets are exact byte positions.
func splitFixed(text string, base int, sizeWords, overlapWords int) []rag.TextChunk {
	words := wordSegments(text, base, len(text))
	if len(words) == 0 {
		return nil
	}

	step := sizeWords - overlapWords
	if step <= 0 {
		step = 1
	}

	var chunks []rag.TextChunk
	for start := 0; start < len(words); start += step {
		// The remaining tail is already covered by the previous chunk's
		// overlap — nothing new to emit.
		if len(chunks) > 0 && len(words)-start <= overlapWords {
			break
		}
		end := start + sizeWords
		if end > len(words) {
			end = len(words)
		}
		lo, hi := words[start].start, words[end-1].end
		chunks = append(chunks, rag.TextChunk{
			Content:   text[lo:hi],
			StartChar: lo,
			EndChar:   hi,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// splitFixedChars produces character windows of sizeChars advancing by
// sizeChars−overlapChars. Used as the recursion base when a single sentence
// exceeds the chunk size.
func splitFixedChars(text string, lo, hi, sizeChars, overlapChars int) []rag.TextChunk {
	step := sizeChars - overlapChars
	if step <= 0 {
		step = 1
	}

	var chunks []rag.TextChunk
	for start := lo; start < hi; start += step {
		end := start + sizeChars
		if end > hi {
			end = hi
		}
		chunks = append(chunks, rag.TextChunk{
			Content:   text[start:end],
			StartChar: start,
			EndChar:   end,
		})
		if end == hi {
			break
		}
	}
	return chunks
}

// packSegments accumulates consecutive segments into chunks of at most
// sizeChars characters of source text, carrying a tail of at most
// overlapChars characters into the next chunk. A single segment longer than
// sizeChars is flushed through the oversize splitter instead.
func packSegments(text string, segs []segment, sizeChars, overlapChars int, oversize func(s segment) []rag.TextChunk) []rag.TextChunk {
	var chunks []rag.TextChunk
	var current []segment

	flush := func() {
		if len(current) == 0 {
			return
		}
		lo, hi := current[0].start, current[len(current)-1].end
		chunks = append(chunks, rag.TextChunk{
			Content:   text[lo:hi],
			StartChar: lo,
			EndChar:   hi,
		})
		// Carry a tail of whole segments totalling at most overlapChars
		// into the next chunk.
		var tail []segment
		total := 0
		for i := len(current) - 1; i > 0; i-- {
			seglen := current[i].end - current[i].start
			if total+seglen > overlapChars {
				break
			}
			total += seglen
			tail = append([]segment{current[i]}, tail...)
		}
		current = tail
	}

	for _, s := range segs {
		seglen := s.end - s.start
		if seglen > sizeChars {
			// Flush whatever accumulated, then sub-split the oversized
			// segment on its own. No overlap is carried across it.
			flush()
			current = nil
			chunks = append(chunks, oversize(s)...)
			continue
		}
		if len(current) > 0 && s.end-current[0].start > sizeChars {
			flush()
			// The overlap tail plus the new segment may still exceed the
			// size when the tail sits far from s in the source; drop the
			// tail in that case.
			if len(current) > 0 && s.end-current[0].start > sizeChars {
				current = nil
			}
		}
		current = append(current, s)
	}
	flush()
	return chunks
}

// splitSentence splits text[lo:hi] on sentence-terminal punctuation and
// packs sentences up to sizeChars with an overlapChars tail. A sentence
// longer than sizeChars falls back to fixed-size character windows.
func splitSentence(text string, lo, sizeChars, overlapChars int) []rag.TextChunk {
	sents := sentenceSegments(text, lo, len(text))
	return packSegments(text, sents, sizeChars, overlapChars, func(s segment) []rag.TextChunk {
		return splitFixedChars(text, s.start, s.end, sizeChars, overlapChars)
	})
}

// splitParagraph splits on blank lines and packs paragraphs up to sizeChars
// with an overlapChars tail. A paragraph longer than sizeChars is split by
// the sentence strategy at half the chunk size.
func splitParagraph(text string, sizeChars, overlapChars int) []rag.TextChunk {
	paras := paragraphSegments(text)
	return packSegments(text, paras, sizeChars, overlapChars, func(s segment) []rag.TextChunk {
		half := sizeChars / 2
		if half < 1 {
			half = 1
		}
		sents := sentenceSegments(text, s.start, s.end)
		return packSegments(text, sents, half, overlapChars/2, func(sub segment) []rag.TextChunk {
			return splitFixedChars(text, sub.start, sub.end, half, overlapChars/2)
		})
	})
}

// splitSemantic embeds each paragraph, inserts a boundary wherever
// adjacent-paragraph cosine similarity drops below the threshold, and packs
// the paragraphs between boundaries into chunks bounded by ChunkSize.
func splitSemantic(ctx context.Context, text string, opts Options) ([]rag.TextChunk, error) {
	if opts.Embed == nil {
		return nil, rag.NewConfigError("chunker", "semantic strategy requires an embedding function")
	}

	paras := paragraphSegments(text)
	if len(paras) == 0 {
		return nil, nil
	}
	if len(paras) == 1 {
		return packSegments(text, paras, opts.ChunkSize, 0, func(s segment) []rag.TextChunk {
			return splitFixedChars(text, s.start, s.end, opts.ChunkSize, opts.ChunkOverlap)
		}), nil
	}

	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = text[p.start:p.end]
	}
	vectors, err := opts.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(paras) {
		return nil, rag.ErrEmptyEmbedding
	}

	// Group consecutive paragraphs, cutting wherever similarity drops.
	var chunks []rag.TextChunk
	groupStart := 0
	for i := 1; i <= len(paras); i++ {
		boundary := i == len(paras)
		if !boundary && CosineSimilarity(vectors[i-1], vectors[i]) < semanticBoundaryThreshold {
			boundary = true
		}
		if !boundary {
			continue
		}
		group := paras[groupStart:i]
		chunks = append(chunks, packSegments(text, group, opts.ChunkSize, 0, func(s segment) []rag.TextChunk {
			return splitFixedChars(text, s.start, s.end, opts.ChunkSize, opts.ChunkOverlap)
		})...)
		groupStart = i
	}
	return chunks, nil
}

// CosineSimilarity returns the normalized dot product of a and b in [-1, 1].
// Mismatched lengths compare over the shorter prefix; zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
