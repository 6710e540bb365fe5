package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/engine"
)

// NewStatsCmd constructs the `ragpipe stats` command, which prints vector
// store totals and, when --user is given, the user's documents with their
// chunk counts and ingestion status.
func NewStatsCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector store and document statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := engine.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer e.Close()

			stats, err := e.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Printf("vectors=%d dimension=%d\n", stats.TotalVectors, stats.Dimension)

			if userID == "" {
				return nil
			}

			docs, err := e.Documents().ListDocuments(ctx, userID)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if len(docs) == 0 {
				fmt.Printf("no documents for user %s\n", userID)
				return nil
			}
			for _, d := range docs {
				fmt.Printf("%s  %-30s  chunks=%-4d status=%s\n", d.ID, d.Name, d.ChunkCount, d.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "List documents owned by this user")

	return cmd
}
