// Package vectorstore provides rag.VectorStore implementations: an exact
// in-process store for tests and local runs, and a Qdrant-backed delegate
// for real deployments. Backends are selected through a string-keyed factory
// that fails fast on unknown names.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// MemoryStore is an in-process rag.VectorStore computing exact cosine
// similarity over all matching candidates with a brute-force scan. It is
// safe for concurrent use.
type MemoryStore struct {
	// mu protects records and index.
	mu sync.RWMutex

	// records holds all stored records in insertion order. Insertion order
	// is the tie-break for equal scores, which keeps search deterministic.
	records []rag.VectorRecord

	// index maps record ID to its position in records.
	index map[string]int

	// dimension is the configured vector size.
	dimension int
}

// NewMemoryStore constructs an empty MemoryStore for vectors of the given
// dimension.
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, rag.NewConfigError("vectorstore", "memory store requires a positive dimension, got %d", dimension)
	}
	return &MemoryStore{
		index:     make(map[string]int),
		dimension: dimension,
	}, nil
}

// Upsert stores or replaces records by ID.
func (s *MemoryStore) Upsert(_ context.Context, records []rag.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("vectorstore: record %s has dimension %d, store expects %d", r.ID, len(r.Embedding), s.dimension)
		}
	}
	for _, r := range records {
		if pos, ok := s.index[r.ID]; ok {
			s.records[pos] = r
		} else {
			s.index[r.ID] = len(s.records)
			s.records = append(s.records, r)
		}
	}
	return nil
}

// Search returns up to topK filter-matching records sorted by descending
// cosine similarity. Equal scores retain insertion order.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int, filter rag.Filter) ([]rag.SearchResult, error) {
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("vectorstore: query has dimension %d, store expects %d", len(queryEmbedding), s.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []rag.SearchResult
	for _, r := range s.records {
		if !filter.Matches(r) {
			continue
		}
		results = append(results, rag.SearchResult{
			Record: r,
			Score:  cosine(queryEmbedding, r.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes every record owned by the document.
func (s *MemoryStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.reindex()
	return nil
}

// DeleteChunk removes a single record by ID. Deleting an absent chunk is not
// an error.
func (s *MemoryStore) DeleteChunk(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[chunkID]
	if !ok {
		return nil
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	s.reindex()
	return nil
}

// reindex rebuilds the ID index after a removal. Callers must hold mu.
func (s *MemoryStore) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

// Stats reports the record count and configured dimension.
func (s *MemoryStore) Stats(_ context.Context) (rag.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rag.StoreStats{TotalVectors: len(s.records), Dimension: s.dimension}, nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b. Zero vectors score 0.
func cosine(a, b []float32) float32 {
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
