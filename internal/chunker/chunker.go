// Package chunker splits document text into ordered, offset-tracked chunks.
// Four strategies are supported (fixed, paragraph, sentence, semantic), all
// followed by a merge pass that folds undersized chunks into their
// neighbours. Chunking is a pure computation: given identical input text and
// options the output sequence is identical on every call.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// Strategy selects the splitting algorithm.
type Strategy string

const (
	// StrategyFixed splits into word-count windows with word overlap.
	StrategyFixed Strategy = "fixed"
	// StrategyParagraph accumulates blank-line-separated paragraphs.
	StrategyParagraph Strategy = "paragraph"
	// StrategySentence accumulates sentences split on terminal punctuation.
	StrategySentence Strategy = "sentence"
	// StrategySemantic places boundaries where adjacent-paragraph cosine
	// similarity drops below the boundary threshold. Requires an EmbedFunc.
	StrategySemantic Strategy = "semantic"
)

// EmbedFunc supplies paragraph embeddings for the semantic strategy. It is
// injected so the chunker stays free of any embedding backend dependency.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// semanticBoundaryThreshold is the cosine similarity below which adjacent
// paragraphs are considered topically distinct.
const semanticBoundaryThreshold = 0.5

// Options controls a Chunk call.
type Options struct {
	// Strategy selects the splitting algorithm. Defaults to StrategyFixed.
	Strategy Strategy

	// ChunkSize is the target chunk size: words for StrategyFixed,
	// characters for the other strategies. Defaults to 1000.
	ChunkSize int

	// ChunkOverlap is the amount of trailing content carried into the next
	// chunk, in the same unit as ChunkSize. Defaults to 200.
	ChunkOverlap int

	// MinChunkSize is the character length below which a chunk is merged
	// into its neighbour by the post-pass. Defaults to 100.
	MinChunkSize int

	// Embed supplies paragraph embeddings for StrategySemantic. Ignored by
	// the other strategies.
	Embed EmbedFunc
}

// withDefaults returns a copy of o with zero values replaced by defaults and
// inconsistent overlap clamped below the chunk size.
func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyFixed
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = o.ChunkSize / 10
	}
	if o.MinChunkSize < 0 {
		o.MinChunkSize = 0
	} else if o.MinChunkSize == 0 {
		o.MinChunkSize = 100
	}
	if o.MinChunkSize >= o.ChunkSize {
		o.MinChunkSize = o.ChunkSize / 10
	}
	return o
}

// Chunk splits text into an ordered chunk sequence under the chosen
// strategy, then merges undersized chunks. Chunk indices are contiguous from
// 0 and StartChar/EndChar are non-decreasing with increasing index.
func Chunk(ctx context.Context, text string, opts Options) ([]rag.TextChunk, error) {
	opts = opts.withDefaults()

	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	var chunks []rag.TextChunk
	var err error
	switch opts.Strategy {
	case StrategyFixed:
		chunks = splitFixed(text, 0, opts.ChunkSize, opts.ChunkOverlap)
	case StrategyParagraph:
		chunks = splitParagraph(text, opts.ChunkSize, opts.ChunkOverlap)
	case StrategySentence:
		chunks = splitSentence(text, 0, opts.ChunkSize, opts.ChunkOverlap)
	case StrategySemantic:
		chunks, err = splitSemantic(ctx, text, opts)
	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q — valid values: fixed, paragraph, sentence, semantic", opts.Strategy)
	}
	if err != nil {
		return nil, err
	}

	chunks = mergeSmall(chunks, opts.MinChunkSize)
	reindex(chunks)
	return chunks, nil
}

// mergeSmall folds chunks shorter than minSize into the previous chunk. The
// first chunk, having no predecessor, merges forward instead. The pass
// repeats until no chunk is below the threshold or only one chunk remains.
// Offsets of a merged chunk are recomputed from the constituent chunks'
// source spans, never by accumulating deltas.
func mergeSmall(chunks []rag.TextChunk, minSize int) []rag.TextChunk {
	if minSize <= 0 {
		return chunks
	}
	for len(chunks) > 1 {
		merged := false
		for i := 0; i < len(chunks); i++ {
			if len(chunks[i].Content) >= minSize {
				continue
			}
			if i == 0 {
				chunks[1] = mergePair(chunks[0], chunks[1])
				chunks = chunks[1:]
			} else {
				chunks[i-1] = mergePair(chunks[i-1], chunks[i])
				chunks = append(chunks[:i], chunks[i+1:]...)
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return chunks
}

// mergePair joins two adjacent chunks. The merged span covers both source
// spans; the content is the concatenation with a separating newline when the
// spans are not contiguous in the source.
func mergePair(a, b rag.TextChunk) rag.TextChunk {
	sep := ""
	if b.StartChar > a.EndChar {
		sep = "\n"
	}
	return rag.TextChunk{
		Content:   a.Content + sep + b.Content,
		Index:     a.Index,
		StartChar: a.StartChar,
		EndChar:   b.EndChar,
	}
}

// reindex rewrites chunk indices to be contiguous from 0.
func reindex(chunks []rag.TextChunk) {
	for i := range chunks {
		chunks[i].Index = i
	}
}
