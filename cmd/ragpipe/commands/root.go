// Package commands defines all Cobra CLI commands for the ragpipe binary.
package commands

import (
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragpipe-go/internal/audit"
	"github.com/54b3r/ragpipe-go/internal/config"
	"github.com/54b3r/ragpipe-go/internal/logging"
	"github.com/54b3r/ragpipe-go/internal/tracing"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// flushTraces sends buffered Langfuse traces before process exit.
var flushTraces func()

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragpipe",
		Short: "ragpipe — a retrieval pipeline for RAG applications",
		Long: `ragpipe ingests documents into a vector store and assembles
citation-annotated context for retrieval-augmented generation.

Documents are parsed, chunked, embedded in batches, and upserted into the
configured vector store (in-memory or Qdrant). At query time the pipeline
transforms the query, retrieves the most similar chunks, and builds a
token-bounded prompt with provenance citations.

Backends are selected via environment variables or a YAML config file
(~/.ragpipe/config.yaml). See 'ragpipe --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			slog.SetDefault(log)

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Carry the logger through the command context.
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				flushTraces = flush
				log.Info("langfuse tracing enabled")
			}

			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if flushTraces != nil {
				flushTraces()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragpipe/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewQueryCmd(),
		NewRetrieveCmd(),
		NewDeleteCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
