package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// checkSequence verifies the ordering invariants every strategy must hold:
// contiguous indices from 0 and non-decreasing offsets.
func checkSequence(t *testing.T, chunks []rag.TextChunk) {
	t.Helper()
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d, want %d", i, c.Index, i)
		}
		if c.EndChar < c.StartChar {
			t.Errorf("chunk %d has EndChar %d < StartChar %d", i, c.EndChar, c.StartChar)
		}
		if i > 0 {
			if c.StartChar < chunks[i-1].StartChar {
				t.Errorf("chunk %d StartChar %d decreases from %d", i, c.StartChar, chunks[i-1].StartChar)
			}
			if c.EndChar < chunks[i-1].EndChar {
				t.Errorf("chunk %d EndChar %d decreases from %d", i, c.EndChar, chunks[i-1].EndChar)
			}
		}
	}
}

// wordText builds a deterministic text of n five-character words.
func wordText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(words, " ")
}

func Test_Chunk_Fixed_WindowsAndOverlap(t *testing.T) {
	t.Parallel()
	text := wordText(500)

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategyFixed,
		ChunkSize:    200,
		ChunkOverlap: 40,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(chunks))
	}
	checkSequence(t, chunks)

	for i, c := range chunks {
		if got := text[c.StartChar:c.EndChar]; got != c.Content {
			t.Errorf("chunk %d content does not match its source span", i)
		}
	}

	// Each chunk overlaps the next by at most 40 words: the next chunk's
	// first word appears within the last 40 words of the current chunk.
	for i := 0; i < len(chunks)-1; i++ {
		a := strings.Fields(chunks[i].Content)
		b := strings.Fields(chunks[i+1].Content)
		head := b[0]
		tailIdx := -1
		for j, w := range a {
			if w == head {
				tailIdx = j
				break
			}
		}
		if tailIdx < 0 {
			t.Errorf("chunks %d and %d do not overlap", i, i+1)
		} else if got := len(a) - tailIdx; got > 40 {
			t.Errorf("chunks %d and %d overlap by %d words, want <= 40", i, i+1, got)
		}
	}
}

func Test_Chunk_Deterministic(t *testing.T) {
	t.Parallel()
	text := "First sentence here. Second one follows! A third? And then\n\na new paragraph with more words in it. " + wordText(80)

	for _, strategy := range []Strategy{StrategyFixed, StrategyParagraph, StrategySentence} {
		opts := Options{Strategy: strategy, ChunkSize: 120, ChunkOverlap: 20, MinChunkSize: 10}
		first, err := Chunk(context.Background(), text, opts)
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		second, err := Chunk(context.Background(), text, opts)
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if len(first) != len(second) {
			t.Fatalf("%s: %d vs %d chunks across calls", strategy, len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("%s: chunk %d differs across calls", strategy, i)
			}
		}
	}
}

func Test_Chunk_Sentence_PacksAndRespectsSize(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Sentence number %02d is short. ", i)
	}
	text := b.String()

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategySentence,
		ChunkSize:    100,
		ChunkOverlap: 30,
		MinChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	checkSequence(t, chunks)

	for i, c := range chunks {
		if len(c.Content) > 100 {
			t.Errorf("chunk %d is %d chars, want <= 100", i, len(c.Content))
		}
		if got := text[c.StartChar:c.EndChar]; got != c.Content {
			t.Errorf("chunk %d content does not match its source span", i)
		}
	}
}

func Test_Chunk_Sentence_OversizedFallsBackToFixed(t *testing.T) {
	t.Parallel()
	// One unbroken 300-char "sentence" with no terminal punctuation.
	text := strings.Repeat("abcde ", 50)

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategySentence,
		ChunkSize:    100,
		ChunkOverlap: 10,
		MinChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("want >= 3 chunks from character windows, got %d", len(chunks))
	}
	checkSequence(t, chunks)
}

func Test_Chunk_Paragraph_PacksUntilSize(t *testing.T) {
	t.Parallel()
	paras := []string{
		strings.Repeat("alpha ", 20),  // 120 chars
		strings.Repeat("bravo ", 20),  // 120 chars
		strings.Repeat("charlie ", 15), // 120 chars
	}
	text := strings.Join(paras, "\n\n")

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategyParagraph,
		ChunkSize:    260,
		ChunkOverlap: 0,
		MinChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	// First two paragraphs fit together, the third starts a new chunk.
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	checkSequence(t, chunks)
	if !strings.Contains(chunks[0].Content, "alpha") || !strings.Contains(chunks[0].Content, "bravo") {
		t.Errorf("first chunk should pack the first two paragraphs")
	}
	if !strings.Contains(chunks[1].Content, "charlie") {
		t.Errorf("second chunk should hold the third paragraph")
	}
}

func Test_Chunk_Paragraph_OversizedRecursesIntoSentences(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "This oversized paragraph keeps sentence %d going strong. ", i)
	}
	text := b.String() // single paragraph, ~570 chars

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategyParagraph,
		ChunkSize:    200,
		ChunkOverlap: 20,
		MinChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("want >= 3 sentence-split chunks, got %d", len(chunks))
	}
	checkSequence(t, chunks)
	// Sentence recursion runs at half the chunk size.
	for i, c := range chunks {
		if len(c.Content) > 200 {
			t.Errorf("chunk %d is %d chars, want <= 200", i, len(c.Content))
		}
	}
}

func Test_Chunk_MergeSmall(t *testing.T) {
	t.Parallel()
	text := "Tiny. " + strings.Repeat("A proper sentence with enough words to stand alone. ", 5) + "End."

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategySentence,
		ChunkSize:    120,
		ChunkOverlap: 0,
		MinChunkSize: 30,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	checkSequence(t, chunks)
	if len(chunks) > 1 {
		for i, c := range chunks {
			if len(c.Content) < 30 {
				t.Errorf("chunk %d is %d chars after merge, want >= 30", i, len(c.Content))
			}
		}
	}
	// Merged offsets still describe a real span of the source.
	for i, c := range chunks {
		if c.StartChar < 0 || c.EndChar > len(text) {
			t.Errorf("chunk %d span [%d,%d) escapes the source text", i, c.StartChar, c.EndChar)
		}
	}
}

func Test_Chunk_MergeSmall_FirstMergesForward(t *testing.T) {
	first := rag.TextChunk{Content: "hi", Index: 0, StartChar: 0, EndChar: 2}
	second := rag.TextChunk{Content: strings.Repeat("x", 50), Index: 1, StartChar: 3, EndChar: 53}
	out := mergeSmall([]rag.TextChunk{first, second}, 10)
	if len(out) != 1 {
		t.Fatalf("want 1 chunk after merge, got %d", len(out))
	}
	if out[0].StartChar != 0 || out[0].EndChar != 53 {
		t.Errorf("merged span = [%d,%d), want [0,53)", out[0].StartChar, out[0].EndChar)
	}
	if !strings.HasPrefix(out[0].Content, "hi") {
		t.Errorf("first chunk content should lead the merged chunk")
	}
}

func Test_Chunk_Semantic_BoundaryOnDissimilarity(t *testing.T) {
	t.Parallel()
	text := "Cats are small mammals kept as pets.\n\nKittens grow into cats quite fast.\n\nQuantum computing uses qubits instead of bits."

	// Paragraphs 0 and 1 share a topic vector; paragraph 2 is orthogonal.
	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}
	embed := func(_ context.Context, texts []string) ([][]float32, error) {
		if len(texts) != 3 {
			return nil, fmt.Errorf("want 3 paragraphs, got %d", len(texts))
		}
		return vectors, nil
	}

	chunks, err := Chunk(context.Background(), text, Options{
		Strategy:     StrategySemantic,
		ChunkSize:    500,
		MinChunkSize: 5,
		Embed:        embed,
	})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks (boundary before the quantum paragraph), got %d", len(chunks))
	}
	checkSequence(t, chunks)
	if !strings.Contains(chunks[0].Content, "Kittens") {
		t.Errorf("first chunk should contain both cat paragraphs")
	}
	if !strings.Contains(chunks[1].Content, "Quantum") {
		t.Errorf("second chunk should contain the quantum paragraph")
	}
}

func Test_Chunk_Semantic_RequiresEmbedFunc(t *testing.T) {
	t.Parallel()
	_, err := Chunk(context.Background(), "some text", Options{Strategy: StrategySemantic})
	if err == nil {
		t.Fatal("want configuration error, got nil")
	}
	if !rag.IsConfigError(err) {
		t.Errorf("want ConfigError, got %T: %v", err, err)
	}
}

func Test_Chunk_EmptyInput(t *testing.T) {
	t.Parallel()
	chunks, err := Chunk(context.Background(), "   \n\t ", Options{})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want no chunks for blank input, got %d", len(chunks))
	}
}

func Test_Chunk_UnknownStrategy(t *testing.T) {
	t.Parallel()
	_, err := Chunk(context.Background(), "text", Options{Strategy: "mystery"})
	if err == nil {
		t.Fatal("want error for unknown strategy, got nil")
	}
}

func Test_CosineSimilarity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b []float32
		want float32
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		got := CosineSimilarity(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
