package transform

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func Test_Transform_OriginalPassesThrough(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(), "how do I rotate keys?", KindOriginal, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Query != "how do I rotate keys?" {
		t.Errorf("Query = %q, want unchanged", res.Query)
	}
	if res.FellBack {
		t.Error("FellBack = true for original kind")
	}
}

func Test_Transform_EmptyKindDefaultsToOriginal(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(), "q", "", nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Kind != KindOriginal {
		t.Errorf("Kind = %q, want original", res.Kind)
	}
}

func Test_Transform_ExpandedAppendsKeywords(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(), "How do I configure the Qdrant vector store?", KindExpanded, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !strings.HasPrefix(res.Query, "How do I configure the Qdrant vector store?") {
		t.Errorf("expanded query must keep the original prefix, got %q", res.Query)
	}
	suffix := strings.TrimPrefix(res.Query, "How do I configure the Qdrant vector store?")
	for _, stop := range []string{" the ", " do ", " i ", " how "} {
		if strings.Contains(suffix, stop) {
			t.Errorf("stop-word %q leaked into keywords: %q", strings.TrimSpace(stop), suffix)
		}
	}
	for _, kw := range []string{"configure", "qdrant", "vector", "store"} {
		if !strings.Contains(suffix, kw) {
			t.Errorf("keyword %q missing from expansion %q", kw, suffix)
		}
	}
}

func Test_Transform_ExpandedCapsAndDeduplicates(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(),
		"alpha alpha bravo charlie delta echo foxtrot golf", KindExpanded, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	suffix := strings.Fields(strings.TrimPrefix(res.Query,
		"alpha alpha bravo charlie delta echo foxtrot golf"))
	if len(suffix) != 5 {
		t.Errorf("appended %d keywords, want 5 distinct: %v", len(suffix), suffix)
	}
}

func Test_Transform_HydeUsesGeneratedDocument(t *testing.T) {
	t.Parallel()
	gen := func(_ context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "what is a vector index?") {
			t.Errorf("prompt does not embed the question: %q", prompt)
		}
		return "A vector index organises embeddings for fast similarity lookup.", nil
	}
	res, err := Transform(context.Background(), "what is a vector index?", KindHyde, gen)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.FellBack {
		t.Error("FellBack = true with a working generator")
	}
	if res.Query != "A vector index organises embeddings for fast similarity lookup." {
		t.Errorf("Query = %q, want the generated passage", res.Query)
	}
}

func Test_Transform_HydeWithoutGeneratorFallsBack(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(), "what is a vector index?", KindHyde, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !res.FellBack {
		t.Error("FellBack = false, want explicit fallback flag")
	}
	if res.Query != "what is a vector index?" {
		t.Errorf("Query = %q, want the unmodified original", res.Query)
	}
	if res.Kind != KindHyde {
		t.Errorf("Kind = %q, want the requested kind preserved", res.Kind)
	}
}

func Test_Transform_HydeGenerationErrorPropagates(t *testing.T) {
	t.Parallel()
	gen := func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	}
	_, err := Transform(context.Background(), "q", KindHyde, gen)
	if err == nil {
		t.Fatal("want error from failing generator, got nil")
	}
}

func Test_Transform_SubquestionParsesNumberedList(t *testing.T) {
	t.Parallel()
	gen := func(context.Context, string) (string, error) {
		return "1. What is chunking?\n2) Why overlap chunks?\n- How are offsets kept?\n", nil
	}
	res, err := Transform(context.Background(), "explain the chunking design", KindSubquestion, gen)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := []string{"What is chunking?", "Why overlap chunks?", "How are offsets kept?"}
	if len(res.SubQuestions) != len(want) {
		t.Fatalf("got %d sub-questions, want %d: %v", len(res.SubQuestions), len(want), res.SubQuestions)
	}
	for i := range want {
		if res.SubQuestions[i] != want[i] {
			t.Errorf("sub-question %d = %q, want %q", i, res.SubQuestions[i], want[i])
		}
	}
	// The first sub-question drives retrieval by default.
	if res.Query != want[0] {
		t.Errorf("Query = %q, want first sub-question", res.Query)
	}
}

func Test_Transform_SubquestionWithoutGeneratorFallsBack(t *testing.T) {
	t.Parallel()
	res, err := Transform(context.Background(), "q", KindSubquestion, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !res.FellBack {
		t.Error("FellBack = false, want explicit fallback flag")
	}
}

func Test_Transform_UnknownKind(t *testing.T) {
	t.Parallel()
	_, err := Transform(context.Background(), "q", "rewrite", nil)
	if err == nil {
		t.Fatal("want error for unknown kind, got nil")
	}
}
