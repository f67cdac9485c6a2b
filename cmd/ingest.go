package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epiguide/epiguide/db"
	"github.com/epiguide/epiguide/internal/config"
	"github.com/epiguide/epiguide/internal/guideline"
	"github.com/epiguide/epiguide/internal/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest guideline documents into the vector store",
	Long: `Reads every .txt and .md file in the directory, splits them into
passages, embeds each passage and stores it in PostgreSQL.

Re-ingesting a document replaces its previous passages.`,
	Example: `  epiguide ingest ./guidelines`,
	Args:    cobra.ExactArgs(1),
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("validating storage config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})

	sources, err := guideline.LoadDir(args[0])
	if err != nil {
		return err
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := newStore(ctx, cfg, guideline.NewQuerier(pool), logger)
	if err != nil {
		return err
	}

	total, err := guideline.NewIngestor(store, logger).Run(ctx, sources)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d passages from %d documents\n", total, len(sources))
	return nil
}
