// Package retriever orchestrates query-time retrieval: transform the query,
// embed it, search the vector store over an enlarged candidate set, filter
// by similarity threshold, rerank, and truncate to the requested top-K.
package retriever

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/transform"
)

// candidateMultiplier enlarges the store query so threshold filtering and
// reranking have headroom beyond the requested top-K.
const candidateMultiplier = 2

// Options controls a single Retrieve call.
type Options struct {
	// Query is the raw user query.
	Query string

	// UserID scopes the search to one tenant. Empty searches all records.
	UserID string

	// DocumentIDs optionally restricts the search to specific documents.
	DocumentIDs []string

	// TopK bounds the number of returned chunks. Zero uses the retriever's
	// configured default.
	TopK int

	// SimilarityThreshold drops hits scoring below it. Zero keeps all hits.
	SimilarityThreshold float32

	// Transform selects the query transformation. Empty means original.
	Transform transform.Kind

	// Generate backs the hyde/subquestion transforms. May be nil; those
	// kinds then fall back to the original query with an explicit flag.
	Generate transform.Generator
}

// Retriever combines an embedder, a vector store, and a reranker into the
// query-time retrieval pipeline. It is safe for concurrent use.
type Retriever struct {
	// embedder converts the transformed query to a dense vector.
	embedder rag.Embedder

	// store performs the vector similarity search.
	store rag.VectorStore

	// reranker reorders threshold-filtered hits. Defaults to a stable no-op.
	reranker rag.Reranker

	// defaultTopK is the result count used when the caller passes 0.
	defaultTopK int
}

// New constructs a Retriever. reranker may be nil, selecting the stable
// no-op. defaultTopK falls back to 5 when non-positive.
func New(embedder rag.Embedder, store rag.VectorStore, reranker rag.Reranker, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retriever: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("retriever: store must not be nil")
	}
	if reranker == nil {
		reranker = rag.NoopReranker{}
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		reranker:    reranker,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve runs the retrieval state machine and returns the ranked result
// together with the transform outcome (so callers can observe fallbacks).
// Equal scores retain the vector store's return order.
func (r *Retriever) Retrieve(ctx context.Context, opts Options) (*rag.RetrievalResult, *transform.Result, error) {
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = r.defaultTopK
	}

	tr, err := transform.Transform(ctx, opts.Query, opts.Transform, opts.Generate)
	if err != nil {
		return nil, nil, fmt.Errorf("retriever: query transform failed: %w", err)
	}

	embedding, err := rag.EmbedSingle(ctx, r.embedder, tr.Query)
	if err != nil {
		return nil, tr, fmt.Errorf("retriever: embedding query failed: %w", err)
	}

	filter := rag.Filter{UserID: opts.UserID, DocumentIDs: opts.DocumentIDs}
	candidates, err := r.store.Search(ctx, embedding.Vector, topK*candidateMultiplier, filter)
	if err != nil {
		return nil, tr, fmt.Errorf("retriever: vector search failed: %w", err)
	}
	total := len(candidates)

	// Threshold filter preserves store order, so ties stay deterministic.
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score >= opts.SimilarityThreshold {
			kept = append(kept, c)
		}
	}

	ranked, err := r.reranker.Rerank(ctx, tr.Query, kept)
	if err != nil {
		return nil, tr, fmt.Errorf("retriever: rerank failed: %w", err)
	}

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return &rag.RetrievalResult{
		Chunks:          ranked,
		TotalCandidates: total,
		Query:           tr.Query,
		Latency:         time.Since(start),
	}, tr, nil
}

// Citations converts ranked hits into provenance records. Chunk offsets are
// recovered from record metadata when present.
func Citations(chunks []rag.SearchResult) []rag.Citation {
	citations := make([]rag.Citation, 0, len(chunks))
	for _, c := range chunks {
		start, _ := strconv.Atoi(c.Record.Metadata["start_char"])
		end, _ := strconv.Atoi(c.Record.Metadata["end_char"])
		citations = append(citations, rag.Citation{
			ChunkID:      c.Record.ID,
			DocumentID:   c.Record.DocumentID,
			DocumentName: c.Record.Metadata["document_name"],
			Score:        c.Score,
			Content:      c.Record.Content,
			StartChar:    start,
			EndChar:      end,
		})
	}
	return citations
}
