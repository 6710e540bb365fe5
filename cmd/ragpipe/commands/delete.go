package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/engine"
)

// NewDeleteCmd constructs the `ragpipe delete` command, which removes a
// document and its chunks from both the metadata store and the vector store.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document-id...]",
		Short: "Delete documents and their vectors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := engine.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer e.Close()

			for _, id := range args {
				if err := e.Delete(ctx, id); err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				fmt.Printf("deleted %s\n", id)
			}
			return nil
		},
	}
}
