package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/engine"
	"github.com/54b3r/ragpipe-go/internal/ingestion"
	"github.com/54b3r/ragpipe-go/internal/logging"
)

// NewIngestCmd constructs the `ragpipe ingest` command, which runs the full
// ingestion pipeline: parse, chunk, embed in batches, upsert, persist.
func NewIngestCmd() *cobra.Command {
	var (
		files        []string
		urls         []string
		userID       string
		format       string
		strategy     string
		chunkSize    int
		chunkOverlap int
		minChunkSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the vector store",
		Long: `Parse, chunk, embed, and index documents for retrieval.

Sources can be local files (--file) or URLs (--url), repeatable and mixable.
The format is detected from the file extension and content unless --format
forces one (text, markdown, html).

A document whose embedding batches partially fail is stored with status
"partial"; already-committed chunks stay searchable. Re-running ingest on
the same content creates a new document — use 'ragpipe delete' to drop the
old one.

Examples:
  ragpipe ingest --file docs/handbook.md --user alice
  ragpipe ingest --url https://example.com/guide.html --user alice
  ragpipe ingest --file notes.txt --strategy paragraph --chunk-size 800`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if len(files) == 0 && len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --file or --url is required")
			}

			// Pre-flight: fail on broken credentials and warn on chat-model
			// names before any store is touched.
			if err := embedder.Validate(embedder.ConfigFromEnv(), log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			e, err := engine.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer e.Close()

			opts := ingestion.Options{
				Progress: func(msg string) { log.Info(msg) },
			}
			if cmd.Flags().Changed("strategy") || cmd.Flags().Changed("chunk-size") ||
				cmd.Flags().Changed("chunk-overlap") || cmd.Flags().Changed("min-chunk-size") {
				opts.Chunking = &chunker.Options{
					Strategy:     chunker.Strategy(strategy),
					ChunkSize:    chunkSize,
					ChunkOverlap: chunkOverlap,
					MinChunkSize: minChunkSize,
				}
			}

			sources := make([]ingestion.Source, 0, len(files)+len(urls))
			for _, f := range files {
				sources = append(sources, ingestion.Source{Path: f, Format: format})
			}
			for _, u := range urls {
				sources = append(sources, ingestion.Source{URL: u, Format: format})
			}

			failures := 0
			for _, src := range sources {
				res, err := e.Ingest(ctx, src, userID, opts)
				if err != nil {
					log.Error("ingestion failed",
						slog.String("source", src.Path+src.URL),
						slog.Any("error", err),
					)
					failures++
					continue
				}

				fmt.Printf("%s  %s  chunks=%d  status=%s\n",
					res.DocumentID, src.Path+src.URL, res.ChunkCount, res.Status)
				for _, ingestErr := range res.Errors {
					log.Warn("partial ingestion", slog.Any("error", ingestErr))
				}
			}

			if failures > 0 {
				return fmt.Errorf("ingest: %d of %d sources failed", failures, len(sources))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local file to ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "URL to fetch and ingest (repeatable)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID that owns the ingested documents")
	cmd.Flags().StringVar(&format, "format", "", "Force the parser format (text, markdown, html)")
	cmd.Flags().StringVar(&strategy, "strategy", "sentence", "Chunking strategy (fixed, paragraph, sentence, semantic)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Target chunk size")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Overlap carried between consecutive chunks")
	cmd.Flags().IntVar(&minChunkSize, "min-chunk-size", 0, "Merge threshold for undersized chunks")

	return cmd
}
