// Package rag defines the shared types and interfaces of the retrieval
// pipeline: documents, chunks, vector records, embedding providers, and
// vector stores. Concrete implementations (Qdrant, in-memory, OpenAI,
// Ollama, etc.) satisfy these interfaces so the orchestration layers never
// depend on a specific backend.
package rag

import (
	"fmt"
	"time"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
// Transitions only move forward (pending → processing → terminal), except
// that a failed document may be retried from the start.
type DocumentStatus string

const (
	// StatusPending means the document has been registered but not processed.
	StatusPending DocumentStatus = "pending"
	// StatusProcessing means ingestion is in flight.
	StatusProcessing DocumentStatus = "processing"
	// StatusCompleted means every chunk was embedded and upserted.
	StatusCompleted DocumentStatus = "completed"
	// StatusFailed means parsing failed or no chunk could be embedded.
	StatusFailed DocumentStatus = "failed"
	// StatusPartial means some embedding batches failed but at least one
	// chunk was committed to the vector store.
	StatusPartial DocumentStatus = "partial"
)

// Document is an ingested source text plus its bookkeeping state.
type Document struct {
	// ID is the unique document identifier.
	ID string

	// Name is the human-readable source name (file name, URL, title).
	Name string

	// Type is the parser format discriminant (e.g. "text", "markdown").
	Type string

	// Size is the raw input size in bytes.
	Size int

	// Content is the parsed plain text.
	Content string

	// Status is the ingestion lifecycle state.
	Status DocumentStatus

	// ChunkCount is the number of chunks produced by the last ingestion.
	ChunkCount int

	// Metadata holds arbitrary key-value pairs carried through the pipeline.
	Metadata map[string]string
}

// TextChunk is a contiguous span of a document's text — the unit of
// embedding and retrieval. Indices are 0-based and contiguous within a
// document; StartChar/EndChar are byte offsets into the parsed source text
// and are non-decreasing with increasing Index.
type TextChunk struct {
	// Content is the chunk text.
	Content string

	// Index is the 0-based position of this chunk within its document.
	Index int

	// StartChar is the byte offset of the chunk's first character in the
	// source text.
	StartChar int

	// EndChar is the byte offset just past the chunk's last character.
	EndChar int
}

// VectorRecord is an embedded chunk as persisted in a vector store.
type VectorRecord struct {
	// ID is the stable record identifier, "{documentID}-chunk-{index}".
	ID string

	// DocumentID identifies the owning document.
	DocumentID string

	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int

	// Embedding is the dense vector; its length must equal the store's
	// configured dimension.
	Embedding []float32

	// Content is the chunk text, stored alongside the vector so search
	// results carry their own text.
	Content string

	// Metadata holds filterable key-value pairs (user_id, document_name, ...).
	Metadata map[string]string
}

// ChunkID returns the stable record ID for a chunk of the given document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}

// Embedding is the result of embedding a single text.
type Embedding struct {
	// Vector is the dense embedding vector.
	Vector []float32

	// TokensUsed is the provider-reported token count for the input text,
	// or 0 when the backend does not report usage.
	TokensUsed int
}

// SearchResult is a single vector-store hit.
type SearchResult struct {
	// Record is the matched vector record.
	Record VectorRecord

	// Score is the backend's similarity score. For cosine backends the
	// range is [-1, 1]; higher is more similar.
	Score float32
}

// Filter restricts a vector search to a logical partition of the store.
type Filter struct {
	// UserID limits results to records owned by this user. Empty matches all.
	UserID string

	// DocumentIDs limits results to these documents. Empty matches all.
	DocumentIDs []string
}

// Matches reports whether the record satisfies the filter predicates.
// Used by in-process stores; delegated backends translate the filter into
// their native filter expressions instead.
func (f Filter) Matches(r VectorRecord) bool {
	if f.UserID != "" && r.Metadata["user_id"] != f.UserID {
		return false
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if r.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// StoreStats reports aggregate vector-store figures.
type StoreStats struct {
	// TotalVectors is the number of records currently stored.
	TotalVectors int

	// Dimension is the store's configured vector size.
	Dimension int
}

// Citation links retrieved context back to its source chunk and document.
type Citation struct {
	// ChunkID is the vector record ID of the cited chunk.
	ChunkID string

	// DocumentID identifies the source document.
	DocumentID string

	// DocumentName is the human-readable source name, if known.
	DocumentName string

	// Score is the similarity score the chunk was retrieved with.
	Score float32

	// Content is the cited chunk text.
	Content string

	// StartChar and EndChar are the chunk's offsets in the source document.
	StartChar int
	EndChar   int
}

// RetrievalResult is the ranked output of a retrieval call.
type RetrievalResult struct {
	// Chunks are the ranked hits, best first, at most the requested topK.
	Chunks []SearchResult

	// TotalCandidates is the number of hits the store returned before
	// threshold filtering and truncation.
	TotalCandidates int

	// Query is the query text that was embedded (after any transform).
	Query string

	// Latency is the wall-clock duration of the retrieval call.
	Latency time.Duration
}

// ContextMetadata describes how an assembled context was produced.
type ContextMetadata struct {
	// RetrievalTime is the latency of the retrieval that fed the context.
	RetrievalTime time.Duration

	// ChunksUsed is the number of chunks included in the context. It always
	// equals the number of citations.
	ChunksUsed int

	// TotalTokens is the estimated token count of the assembled prompt.
	// This is a character-based approximation, not a tokenizer count.
	TotalTokens int
}

// Context is the assembled prompt artifact handed to a downstream model.
type Context struct {
	// Prompt is the full system prompt including instructions and context.
	Prompt string

	// Context is the citation-annotated concatenation of retrieved chunks.
	Context string

	// Citations records the provenance of every chunk in Context.
	Citations []Citation

	// Metadata describes the assembly.
	Metadata ContextMetadata
}
