package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epiguide/epiguide/internal/config"
	"github.com/epiguide/epiguide/internal/log"
)

var (
	lookupGene    string
	lookupVariant string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look a variant up in ClinVar and summarize the records",
	Long: `Runs only the variant lookup step: queries NCBI ClinVar for the given
gene and variant, and generates a clinician report per record with the
epilepsy syndromes each one mentions.

No database is needed; this step does not touch the guideline corpus.`,
	Example: `  epiguide lookup --gene SCN1A --variant "c.2447G>A"`,
	RunE:    runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupGene, "gene", "", "gene symbol, e.g. SCN1A")
	lookupCmd.Flags().StringVar(&lookupVariant, "variant", "", "variant notation, e.g. c.2447G>A")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if strings.TrimSpace(lookupGene) == "" && strings.TrimSpace(lookupVariant) == "" {
		return fmt.Errorf("at least one of --gene and --variant is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})
	p, err := newPlanner(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	state, err := p.Lookup(ctx, lookupGene, lookupVariant)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Query: %s\n", state.Lookup.Query)

	if len(state.Reports) == 0 {
		fmt.Fprintln(out, "No ClinVar records found.")
		return nil
	}

	for _, rep := range state.Reports {
		fmt.Fprintf(out, "\n=== ClinVar %s: %s ===\n\n%s\n", rep.VariantID, rep.Title, rep.Text)
	}
	if len(state.Syndromes) > 0 {
		fmt.Fprintf(out, "\nIdentified syndromes: %s\n", strings.Join(state.Syndromes, "; "))
	}
	return nil
}
