package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ragpipe-go/internal/assembler"
	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/ingestion"
	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/store"
	"github.com/54b3r/ragpipe-go/internal/transform"
	"github.com/54b3r/ragpipe-go/internal/vectorstore"
)

// fakeProvider embeds every text as a constant unit vector, so every stored
// chunk scores 1.0 against every query. err fails all calls.
type fakeProvider struct {
	err   error
	calls int
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([]rag.Embedding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]rag.Embedding, len(texts))
	for i := range texts {
		out[i] = rag.Embedding{Vector: []float32{1, 0, 0}}
	}
	return out, nil
}

func (f *fakeProvider) Dimension() int    { return 3 }
func (f *fakeProvider) MaxBatchSize() int { return 10 }

func newTestEngine(t *testing.T, fake *fakeProvider) *Engine {
	t.Helper()

	vectors, err := vectorstore.NewMemoryStore(3)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	documents, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("document store: %v", err)
	}

	e, err := New(&Config{
		Embedder:  embedder.NewBatched(fake, nil),
		Vectors:   vectors,
		Documents: documents,
		Assembly:  assembler.Options{IncludeCitations: true},
		Chunking:  chunker.Options{Strategy: chunker.StrategySentence, ChunkSize: 80, MinChunkSize: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

const sampleText = "Vector stores index dense embeddings. Retrieval ranks chunks by similarity. " +
	"Context assembly builds the final prompt."

// ingestSample loads the sample document and returns its ID.
func ingestSample(t *testing.T, e *Engine) string {
	t.Helper()
	res, err := e.Ingest(context.Background(), ingestion.Source{
		Name: "notes.txt",
		Data: []byte(sampleText),
	}, "user-1", ingestion.Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != rag.StatusCompleted {
		t.Fatalf("ingest status = %q, want %q", res.Status, rag.StatusCompleted)
	}
	return res.DocumentID
}

func Test_Query_AssemblesContextWithCitations(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	docID := ingestSample(t, e)

	out, err := e.Query(context.Background(), QueryOptions{
		Query:  "how are chunks ranked?",
		UserID: "user-1",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if !strings.Contains(out.Context.Context, "Retrieval ranks chunks") {
		t.Errorf("context missing ingested chunk text:\n%s", out.Context.Context)
	}
	if len(out.Context.Citations) != out.Context.Metadata.ChunksUsed {
		t.Errorf("citations = %d, chunks used = %d", len(out.Context.Citations), out.Context.Metadata.ChunksUsed)
	}
	if len(out.Context.Citations) == 0 {
		t.Fatal("expected at least one citation")
	}
	if got := out.Context.Citations[0].DocumentID; got != docID {
		t.Errorf("citation document = %q, want %q", got, docID)
	}
	if out.TransformedQuery.Kind != transform.KindOriginal {
		t.Errorf("transform kind = %q, want %q", out.TransformedQuery.Kind, transform.KindOriginal)
	}
}

func Test_Query_DisableRagSkipsRetrieval(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{}
	e := newTestEngine(t, fake)
	ingestSample(t, e)
	callsAfterIngest := fake.calls

	out, err := e.Query(context.Background(), QueryOptions{
		Query:      "anything",
		UserID:     "user-1",
		DisableRag: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if fake.calls != callsAfterIngest {
		t.Errorf("embedder called %d times during no-rag query, want 0", fake.calls-callsAfterIngest)
	}
	if !strings.Contains(out.Context.Prompt, "No relevant context found.") {
		t.Errorf("prompt missing empty-context marker:\n%s", out.Context.Prompt)
	}
	if out.Context.Metadata.ChunksUsed != 0 {
		t.Errorf("chunks used = %d, want 0", out.Context.Metadata.ChunksUsed)
	}
}

func Test_Query_RetrievalFailureFallsBackToEmptyContext(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{err: errors.New("backend down")})

	out, err := e.Query(context.Background(), QueryOptions{Query: "anything"})
	if err != nil {
		t.Fatalf("Query must not propagate retrieval errors, got: %v", err)
	}

	if !strings.Contains(out.Context.Prompt, "No relevant context found.") {
		t.Errorf("prompt missing empty-context marker:\n%s", out.Context.Prompt)
	}
	if len(out.Context.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(out.Context.Citations))
	}
}

func Test_Retrieve_PropagatesErrors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{err: errors.New("backend down")})

	if _, err := e.Retrieve(context.Background(), QueryOptions{Query: "anything"}); err == nil {
		t.Fatal("expected error from Retrieve, got nil")
	}
}

func Test_Retrieve_ReturnsChunksAndCitations(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	ingestSample(t, e)

	out, err := e.Retrieve(context.Background(), QueryOptions{
		Query:  "similarity ranking",
		UserID: "user-1",
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(out.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(out.Citations) != len(out.Chunks) {
		t.Errorf("citations = %d, chunks = %d", len(out.Citations), len(out.Chunks))
	}
	if out.Citations[0].DocumentName != "notes.txt" {
		t.Errorf("citation document name = %q, want %q", out.Citations[0].DocumentName, "notes.txt")
	}
}

func Test_Query_UserIsolation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	ingestSample(t, e)

	out, err := e.Query(context.Background(), QueryOptions{
		Query:  "anything",
		UserID: "someone-else",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if out.Context.Metadata.ChunksUsed != 0 {
		t.Errorf("chunks used = %d, want 0 for foreign user", out.Context.Metadata.ChunksUsed)
	}
}

func Test_Query_EmptyQueryRejected(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})

	if _, err := e.Query(context.Background(), QueryOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func Test_Delete_RemovesDocument(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	docID := ingestSample(t, e)

	if err := e.Delete(context.Background(), docID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	out, err := e.Query(context.Background(), QueryOptions{Query: "anything", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.Context.Metadata.ChunksUsed != 0 {
		t.Errorf("chunks used = %d after delete, want 0", out.Context.Metadata.ChunksUsed)
	}

	if _, err := e.Documents().GetDocument(context.Background(), docID); err == nil {
		t.Error("expected document record to be gone")
	}
}

func Test_New_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
