package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/store"
	"github.com/54b3r/ragpipe-go/internal/vectorstore"
)

// fakeEmbedder embeds every text as a constant vector. Calls listed in
// failCalls (0-based EmbedAll call numbers) fail wholesale.
type fakeEmbedder struct {
	calls     int
	failCalls map[int]bool
}

func (f *fakeEmbedder) EmbedAll(_ context.Context, texts []string) ([]rag.Embedding, []embedder.BatchError) {
	call := f.calls
	f.calls++
	if f.failCalls[call] {
		return make([]rag.Embedding, len(texts)), []embedder.BatchError{
			{Batch: 0, Start: 0, End: len(texts), Err: context.DeadlineExceeded},
		}
	}
	out := make([]rag.Embedding, len(texts))
	for i := range texts {
		out[i] = rag.Embedding{Vector: []float32{1, 0, 0}, TokensUsed: len(texts[i]) / 4}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

// newTestPipeline wires a pipeline against in-memory stores. BatchSize 2
// keeps batch boundaries easy to hit with small inputs.
func newTestPipeline(t *testing.T, emb Embedder) (*Pipeline, rag.VectorStore, store.DocumentStore) {
	t.Helper()
	vectors, err := vectorstore.NewMemoryStore(3)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	documents, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("document store: %v", err)
	}
	t.Cleanup(func() { _ = documents.Close() })

	p, err := NewPipeline(emb, vectors, documents, nil, &Config{
		BatchSize: 2,
		Chunking:  chunker.Options{Strategy: chunker.StrategySentence, ChunkSize: 80, ChunkOverlap: 0, MinChunkSize: 1},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, vectors, documents
}

const sampleText = "First sentence about storage. Second sentence about retrieval. " +
	"Third sentence about embeddings. Fourth sentence about chunking. " +
	"Fifth sentence about ranking. Sixth sentence about prompts."

func Test_Ingest_CompletesAndStoresEverything(t *testing.T) {
	t.Parallel()
	p, vectors, documents := newTestPipeline(t, &fakeEmbedder{})
	ctx := context.Background()

	var messages []string
	res, err := p.Ingest(ctx, Source{
		Name: "notes.txt",
		Data: []byte(sampleText),
	}, "user-1", Options{Progress: func(msg string) { messages = append(messages, msg) }})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusCompleted {
		t.Fatalf("status = %s, want completed (errors: %v)", res.Status, res.Errors)
	}
	if res.ChunkCount == 0 {
		t.Fatal("no chunks committed")
	}
	if len(messages) == 0 {
		t.Error("no progress messages reported")
	}

	stats, err := vectors.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalVectors != res.ChunkCount {
		t.Errorf("vector store has %d records, want %d", stats.TotalVectors, res.ChunkCount)
	}

	doc, err := documents.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.Status != rag.StatusCompleted || doc.ChunkCount != res.ChunkCount {
		t.Errorf("document %s/%d, want completed/%d", doc.Status, doc.ChunkCount, res.ChunkCount)
	}
	chunks, err := documents.Chunks(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Error("no chunk metadata persisted")
	}

	hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 1, rag.Filter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	rec := hits[0].Record
	if rec.Metadata["user_id"] != "user-1" || rec.Metadata["document_name"] != "notes.txt" {
		t.Errorf("record metadata incomplete: %v", rec.Metadata)
	}
	if rec.Metadata["start_char"] == "" || rec.Metadata["end_char"] == "" {
		t.Errorf("record missing offsets: %v", rec.Metadata)
	}
}

func Test_Ingest_PartialOnBatchFailure(t *testing.T) {
	t.Parallel()
	// Second EmbedAll call fails; with BatchSize 2 and several sentence
	// chunks the document must end up partial.
	p, vectors, documents := newTestPipeline(t, &fakeEmbedder{failCalls: map[int]bool{1: true}})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Source{Name: "notes.txt", Data: []byte(sampleText)}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusPartial {
		t.Fatalf("status = %s, want partial", res.Status)
	}
	if len(res.Errors) == 0 {
		t.Error("expected batch errors recorded")
	}
	found := false
	for _, e := range res.Errors {
		var be *embedder.BatchError
		if errors.As(e, &be) {
			found = true
		}
	}
	if !found {
		t.Errorf("errors do not expose the batch error: %v", res.Errors)
	}

	stats, err := vectors.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalVectors != res.ChunkCount {
		t.Errorf("vector store has %d records, want %d", stats.TotalVectors, res.ChunkCount)
	}
	doc, err := documents.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.Status != rag.StatusPartial {
		t.Errorf("document status = %s, want partial", doc.Status)
	}
}

func Test_Ingest_FailedWhenNoBatchSucceeds(t *testing.T) {
	t.Parallel()
	p, _, documents := newTestPipeline(t, &fakeEmbedder{failCalls: map[int]bool{0: true, 1: true, 2: true, 3: true}})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Source{Name: "notes.txt", Data: []byte(sampleText)}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ChunkCount != 0 {
		t.Errorf("ChunkCount = %d, want 0", res.ChunkCount)
	}
	doc, err := documents.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.Status != rag.StatusFailed {
		t.Errorf("document status = %s, want failed", doc.Status)
	}
}

func Test_Ingest_ParseFailureMarksFailed(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, &fakeEmbedder{})

	res, err := p.Ingest(context.Background(), Source{
		Name:   "broken.txt",
		Data:   []byte{0xff, 0xfe},
		Format: "text",
	}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(res.Errors) == 0 {
		t.Error("expected the parse error to be reported")
	}
}

func Test_Ingest_EmptyInputMarksFailed(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, &fakeEmbedder{})

	res, err := p.Ingest(context.Background(), Source{Name: "empty.txt", Data: []byte("   ")}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
}

func Test_Ingest_StreamSource(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, &fakeEmbedder{})

	res, err := p.Ingest(context.Background(), Source{
		Reader: strings.NewReader("A sentence from a stream. Another streamed sentence."),
	}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusCompleted {
		t.Fatalf("status = %s, want completed", res.Status)
	}
}

func Test_Ingest_RejectsEmptySource(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, &fakeEmbedder{})
	if _, err := p.Ingest(context.Background(), Source{}, "user-1", Options{}); err == nil {
		t.Fatal("expected error for source with no input")
	}
}

func Test_Reprocess_ReplacesChunks(t *testing.T) {
	t.Parallel()
	p, vectors, documents := newTestPipeline(t, &fakeEmbedder{})
	ctx := context.Background()

	first, err := p.Ingest(ctx, Source{Name: "notes.txt", Data: []byte(sampleText)}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first.Status != rag.StatusCompleted {
		t.Fatalf("initial status = %s", first.Status)
	}

	// Reprocess with a much larger chunk size: fewer chunks, no orphans.
	second, err := p.Reprocess(ctx, first.DocumentID, "user-1", Options{
		Chunking: &chunker.Options{Strategy: chunker.StrategyFixed, ChunkSize: 1000, ChunkOverlap: 0, MinChunkSize: 1},
	})
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("document ID changed on reprocess: %s vs %s", second.DocumentID, first.DocumentID)
	}
	if second.ChunkCount >= first.ChunkCount {
		t.Errorf("chunk count %d not reduced from %d", second.ChunkCount, first.ChunkCount)
	}

	stats, err := vectors.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalVectors != second.ChunkCount {
		t.Errorf("vector store has %d records, want %d (orphans left behind)", stats.TotalVectors, second.ChunkCount)
	}
	chunks, err := documents.Chunks(ctx, first.DocumentID)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != second.ChunkCount {
		t.Errorf("metadata store has %d chunks, want %d", len(chunks), second.ChunkCount)
	}
}

func Test_Delete_RemovesFromBothStores(t *testing.T) {
	t.Parallel()
	p, vectors, documents := newTestPipeline(t, &fakeEmbedder{})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Source{Name: "notes.txt", Data: []byte(sampleText)}, "user-1", Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := p.Delete(ctx, res.DocumentID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stats, err := vectors.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalVectors != 0 {
		t.Errorf("vector store still has %d records", stats.TotalVectors)
	}
	if _, err := documents.GetDocument(ctx, res.DocumentID); err == nil {
		t.Error("document still present after delete")
	}
}

func Test_NameFromURL(t *testing.T) {
	t.Parallel()
	cases := []struct {
		url  string
		want string
	}{
		{"https://docs.example.com/guides/setup.md", "setup.md"},
		{"https://docs.example.com/guides/", "guides"},
		{"https://docs.example.com", "docs.example.com"},
	}
	for _, tc := range cases {
		if got := nameFromURL(tc.url); got != tc.want {
			t.Errorf("nameFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
