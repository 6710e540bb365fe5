package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/engine"
	"github.com/54b3r/ragpipe-go/internal/transform"
)

// NewRetrieveCmd constructs the `ragpipe retrieve` command, which prints the
// raw ranked chunks without assembling a prompt. Useful for inspecting what
// the vector store actually returns for a query.
func NewRetrieveCmd() *cobra.Command {
	var (
		userID       string
		documentIDs  []string
		topK         int
		threshold    float32
		transformKey string
	)

	cmd := &cobra.Command{
		Use:   "retrieve [question]",
		Short: "Retrieve ranked chunks for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := engine.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			defer e.Close()

			out, err := e.Retrieve(ctx, engine.QueryOptions{
				Query:               args[0],
				UserID:              userID,
				DocumentIDs:         documentIDs,
				TopK:                topK,
				SimilarityThreshold: threshold,
				Transform:           transform.Kind(transformKey),
			})
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}

			if len(out.Chunks) == 0 {
				fmt.Println("no chunks above threshold")
				return nil
			}

			for i, c := range out.Citations {
				fmt.Printf("[%d] score=%.3f  %s  (%s, chars %d-%d)\n%s\n\n",
					i+1, c.Score, c.DocumentName, c.DocumentID, c.StartChar, c.EndChar, c.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID to scope retrieval to")
	cmd.Flags().StringArrayVar(&documentIDs, "document", nil, "Restrict retrieval to a document ID (repeatable)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Maximum number of chunks to retrieve")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum similarity score")
	cmd.Flags().StringVar(&transformKey, "transform", "", "Query transform (original, expanded, hyde, subquestion)")

	return cmd
}
