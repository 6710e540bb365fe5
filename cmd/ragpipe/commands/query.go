package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/engine"
	"github.com/54b3r/ragpipe-go/internal/transform"
)

// NewQueryCmd constructs the `ragpipe query` command, which runs the full
// query pipeline and prints the assembled RAG prompt with its citations.
func NewQueryCmd() *cobra.Command {
	var (
		userID       string
		documentIDs  []string
		topK         int
		threshold    float32
		noRag        bool
		transformKey string
		systemPrompt string
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Assemble a RAG prompt for a question",
		Long: `Transform the question, retrieve the most similar chunks, and print a
citation-annotated prompt ready for an LLM.

Retrieval failures never abort the command: the prompt falls back to an
explicit "no relevant context" marker so downstream generation still works.

Examples:
  ragpipe query "how do I rotate the signing keys?" --user alice
  ragpipe query "summarise the incident report" --document 4f1c... --top-k 3
  ragpipe query "deploy steps" --transform hyde`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := engine.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer e.Close()

			out, err := e.Query(ctx, engine.QueryOptions{
				Query:               args[0],
				UserID:              userID,
				DocumentIDs:         documentIDs,
				TopK:                topK,
				SimilarityThreshold: threshold,
				DisableRag:          noRag,
				Transform:           transform.Kind(transformKey),
				SystemPrompt:        systemPrompt,
			})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			fmt.Println(out.Context.Prompt)

			if out.TransformedQuery.FellBack {
				fmt.Printf("\n(query transform %q fell back to the original query)\n", out.TransformedQuery.Kind)
			}
			if len(out.Context.Citations) > 0 {
				fmt.Println("\nSources:")
				for i, c := range out.Context.Citations {
					fmt.Printf("  [%d] %s (%s, score %.3f)\n", i+1, c.DocumentName, c.DocumentID, c.Score)
				}
			}
			fmt.Printf("\nchunks=%d est_tokens=%d retrieval=%s\n",
				out.Context.Metadata.ChunksUsed,
				out.Context.Metadata.TotalTokens,
				out.Context.Metadata.RetrievalTime,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID to scope retrieval to")
	cmd.Flags().StringArrayVar(&documentIDs, "document", nil, "Restrict retrieval to a document ID (repeatable)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Maximum number of chunks to retrieve")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum similarity score")
	cmd.Flags().BoolVar(&noRag, "no-rag", false, "Skip retrieval and assemble an empty context")
	cmd.Flags().StringVar(&transformKey, "transform", "", "Query transform (original, expanded, hyde, subquestion)")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "Override the prompt template (two %s verbs: context, question)")

	return cmd
}
