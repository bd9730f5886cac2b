package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/futig/medical-chatbot/internal/builder"
	"github.com/futig/medical-chatbot/internal/usecase/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataDir string
		env     string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load PDFs into the medical chatbot vector index",
		Long: `Loads every PDF directly under the data directory, splits the pages into
overlapping chunks, embeds them and upserts them into the vector index,
creating the index first when it does not exist. Re-running over the same
files overwrites the same chunks.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd, env, ingest.Options{Dir: dataDir, DryRun: dryRun})
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "data/", "directory with the PDF files")
	cmd.Flags().StringVar(&env, "env", "local", "environment name, selects the .env.<env> file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "load and split only, without embedding or upserting")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, env string, opts ingest.Options) error {
	uc, logger, cleanup, err := builder.BuildIngestor(env)
	if err != nil {
		return fmt.Errorf("build ingestor: %w", err)
	}
	defer cleanup()

	report, err := uc.Run(ctx, opts)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
