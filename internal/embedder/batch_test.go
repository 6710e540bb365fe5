package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// fakeProvider records every Embed call and can be told to fail specific
// calls. Each returned vector encodes the input text's length so tests can
// map results back to inputs.
type fakeProvider struct {
	dim      int
	max      int
	calls    [][]string
	failCall int // 0-based call index to fail, -1 for none
}

func newFakeProvider(max int) *fakeProvider {
	return &fakeProvider{dim: 2, max: max, failCall: -1}
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([]rag.Embedding, error) {
	call := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), texts...))
	if call == f.failCall {
		return nil, errors.New("backend unavailable")
	}
	out := make([]rag.Embedding, len(texts))
	for i, t := range texts {
		out[i] = rag.Embedding{Vector: []float32{float32(len(t)), 1}, TokensUsed: len(t) / 4}
	}
	return out, nil
}

func (f *fakeProvider) Dimension() int    { return f.dim }
func (f *fakeProvider) MaxBatchSize() int { return f.max }

func Test_Batched_SplitsAndPreservesOrder(t *testing.T) {
	t.Parallel()
	provider := newFakeProvider(2)
	b := NewBatched(provider, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	embeddings, errs := b.EmbedAll(context.Background(), texts)
	if len(errs) != 0 {
		t.Fatalf("unexpected batch errors: %v", errs)
	}

	if len(provider.calls) != 3 {
		t.Fatalf("want 3 provider calls, got %d", len(provider.calls))
	}
	for i, wantLen := range []int{2, 2, 1} {
		if got := len(provider.calls[i]); got != wantLen {
			t.Errorf("call %d carried %d texts, want %d", i, got, wantLen)
		}
	}

	if len(embeddings) != len(texts) {
		t.Fatalf("want %d embeddings, got %d", len(texts), len(embeddings))
	}
	for i, text := range texts {
		if got := embeddings[i].Vector[0]; got != float32(len(text)) {
			t.Errorf("embedding %d maps to a text of length %v, want %d", i, got, len(text))
		}
	}
}

func Test_Batched_PartialFailureKeepsSiblings(t *testing.T) {
	t.Parallel()
	provider := newFakeProvider(2)
	provider.failCall = 1
	b := NewBatched(provider, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	embeddings, errs := b.EmbedAll(context.Background(), texts)

	if len(errs) != 1 {
		t.Fatalf("want 1 batch error, got %d", len(errs))
	}
	if errs[0].Batch != 1 || errs[0].Start != 2 || errs[0].End != 4 {
		t.Errorf("error = batch %d range [%d,%d), want batch 1 range [2,4)", errs[0].Batch, errs[0].Start, errs[0].End)
	}

	// Sibling batches still produced embeddings.
	for _, i := range []int{0, 1, 4} {
		if embeddings[i].Vector == nil {
			t.Errorf("embedding %d missing despite its batch succeeding", i)
		}
	}
	// Failed batch positions hold zero values.
	for _, i := range []int{2, 3} {
		if embeddings[i].Vector != nil {
			t.Errorf("embedding %d present despite its batch failing", i)
		}
	}
}

func Test_Batched_EmbedFailsOnAnyBatchError(t *testing.T) {
	t.Parallel()
	provider := newFakeProvider(2)
	provider.failCall = 0
	b := NewBatched(provider, nil)

	_, err := b.Embed(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("want *BatchError, got %T", err)
	}
	if be.Batch != 0 {
		t.Errorf("failed batch = %d, want 0", be.Batch)
	}
}

func Test_Batched_CancellationBetweenBatches(t *testing.T) {
	t.Parallel()
	provider := newFakeProvider(1)
	b := NewBatched(provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errs := b.EmbedAll(ctx, []string{"a", "b"})
	if len(errs) != 2 {
		t.Fatalf("want both batches recorded as failed, got %d errors", len(errs))
	}
	for _, e := range errs {
		if !errors.Is(e.Err, context.Canceled) {
			t.Errorf("batch %d error = %v, want context.Canceled", e.Batch, e.Err)
		}
	}
	if len(provider.calls) != 0 {
		t.Errorf("provider was called %d times after cancellation, want 0", len(provider.calls))
	}
}

func Test_EmbedSingle(t *testing.T) {
	t.Parallel()
	provider := newFakeProvider(8)
	b := NewBatched(provider, nil)

	emb, err := rag.EmbedSingle(context.Background(), b, "hello")
	if err != nil {
		t.Fatalf("EmbedSingle: %v", err)
	}
	if emb.Vector[0] != 5 {
		t.Errorf("vector[0] = %v, want 5", emb.Vector[0])
	}
}

func Test_New_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := New(&Config{Provider: "pinecone"})
	if err == nil {
		t.Fatal("want error for unknown backend, got nil")
	}
	if !rag.IsConfigError(err) {
		t.Errorf("want ConfigError, got %T: %v", err, err)
	}
}

func Test_New_OpenAIRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := New(&Config{Provider: "openai"})
	if err == nil {
		t.Fatal("want error for missing API key, got nil")
	}
	if !rag.IsConfigError(err) {
		t.Errorf("want ConfigError, got %T: %v", err, err)
	}
}

func Test_ApportionTokens(t *testing.T) {
	t.Parallel()
	texts := []string{"aaaa", "bbbbbbbb", "cc"}
	embeddings := make([]rag.Embedding, len(texts))
	apportionTokens(embeddings, texts, 14)

	total := 0
	for _, e := range embeddings {
		total += e.TokensUsed
	}
	if total != 14 {
		t.Errorf("apportioned total = %d, want 14", total)
	}
	if embeddings[1].TokensUsed <= embeddings[2].TokensUsed {
		t.Errorf("longer text received %d tokens, shorter %d — want proportional shares",
			embeddings[1].TokensUsed, embeddings[2].TokensUsed)
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"llama3:8b", true},
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
	}
	for _, tc := range cases {
		if got := looksLikeChatModel(tc.model); got != tc.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

// Ensure the fake satisfies the interface the batcher expects.
var _ rag.Embedder = (*fakeProvider)(nil)
