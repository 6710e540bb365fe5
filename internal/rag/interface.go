package rag

import (
	"context"
)

// Embedder converts text into fixed-dimension dense vectors.
// Implementations must preserve input order and be safe for concurrent use.
type Embedder interface {
	// Embed converts a batch of texts into embeddings. The returned slice is
	// parallel to the input. Implementations may be subject to a provider
	// batch limit; callers that need transparent splitting should wrap the
	// provider (see the embedder package's Batched client).
	Embed(ctx context.Context, texts []string) ([]Embedding, error)

	// Dimension is the length of every vector this embedder produces.
	Dimension() int

	// MaxBatchSize is the largest number of texts a single Embed call may
	// carry before the backend rejects or silently truncates the request.
	MaxBatchSize() int
}

// EmbedSingle embeds one text with the given embedder.
func EmbedSingle(ctx context.Context, e Embedder, text string) (Embedding, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	if len(out) == 0 {
		return Embedding{}, ErrEmptyEmbedding
	}
	return out[0], nil
}

// VectorStore persists vector records and serves nearest-neighbour search
// scoped by tenant/document filters. Implementations must be safe to call
// from multiple goroutines and must guarantee per-record upsert/delete
// atomicity from their own backend.
type VectorStore interface {
	// Upsert stores or replaces records by ID (create-or-replace semantics).
	Upsert(ctx context.Context, records []VectorRecord) error

	// Search returns up to topK records matching the filter, sorted by
	// descending similarity. Exactness is backend-dependent: ordering and
	// filter correctness are guaranteed, recall is not.
	Search(ctx context.Context, queryEmbedding []float32, topK int, filter Filter) ([]SearchResult, error)

	// Delete removes every record belonging to the document.
	Delete(ctx context.Context, documentID string) error

	// DeleteChunk removes a single record by its chunk ID.
	DeleteChunk(ctx context.Context, chunkID string) error

	// Stats reports the current record count and vector dimension.
	Stats(ctx context.Context) (StoreStats, error)

	// Close releases any resources held by the store.
	Close() error
}

// Parser converts raw bytes of a supported format into plain text plus
// metadata. Parsers are thin: the pipeline only consumes this interface.
type Parser interface {
	// Parse extracts plain text and format-specific metadata from data.
	Parse(ctx context.Context, data []byte) (*ParseResult, error)

	// Format is the discriminant string this parser is registered under.
	Format() string
}

// ParseResult is the output of a Parser.
type ParseResult struct {
	// Text is the extracted plain text.
	Text string

	// Metadata holds format-specific attributes (title, heading count, ...).
	Metadata map[string]string
}

// Reranker reorders retrieval hits after threshold filtering and before
// truncation. The default implementation is a stable no-op; the slot exists
// for a future cross-encoder.
type Reranker interface {
	// Rerank returns the results in their new order. Implementations must
	// be stable: equal-relevance results keep their input order.
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)
}

// NoopReranker preserves the vector store's ranking unchanged.
type NoopReranker struct{}

// Rerank returns results as-is.
func (NoopReranker) Rerank(_ context.Context, _ string, results []SearchResult) ([]SearchResult, error) {
	return results, nil
}
