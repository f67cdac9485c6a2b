package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epiguide/epiguide/db"
	"github.com/epiguide/epiguide/internal/config"
	"github.com/epiguide/epiguide/internal/guideline"
	"github.com/epiguide/epiguide/internal/log"
)

var planCmd = &cobra.Command{
	Use:   "plan [patient description]",
	Short: "Run the full pipeline on a patient description",
	Long: `Runs all three pipeline steps: parse the description, look the variant
up in ClinVar with per-record clinician reports, and synthesize treatment
recommendations from the ingested guideline corpus.

The description is read from the arguments, or from stdin when absent.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		data, err := readAllStdin()
		if err != nil {
			return err
		}
		text = strings.TrimSpace(data)
	}
	if text == "" {
		return fmt.Errorf("no patient description provided")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})

	// The guideline store is optional for plan: without a reachable
	// database the recommend step reports no treatment information.
	var store *guideline.Store
	if err := cfg.ValidateStorage(); err == nil {
		pool, connErr := db.Connect(ctx, cfg.PostgresURL())
		if connErr != nil {
			logger.Warn("guideline database unavailable, treatments will be empty", "error", connErr)
		} else {
			defer pool.Close()
			store, err = newStore(ctx, cfg, guideline.NewQuerier(pool), logger)
			if err != nil {
				return err
			}
		}
	}

	p, err := newPlanner(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	state, err := p.Run(ctx, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n\n", state.RunID)
	fmt.Fprintf(out, "Gene:         %s\n", state.Parsed.Gene)
	fmt.Fprintf(out, "Variant:      %s\n", state.Parsed.Variant)
	fmt.Fprintf(out, "Variant type: %s\n", state.Parsed.VariantType)
	if len(state.Parsed.Phenotypes) > 0 {
		fmt.Fprintf(out, "Phenotypes:   %s\n", strings.Join(state.Parsed.Phenotypes, "; "))
	}

	if len(state.Reports) == 0 {
		fmt.Fprintln(out, "\nNo ClinVar records found.")
	}
	for _, rep := range state.Reports {
		fmt.Fprintf(out, "\n=== ClinVar %s: %s ===\n\n%s\n", rep.VariantID, rep.Title, rep.Text)
	}

	if len(state.Syndromes) > 0 {
		fmt.Fprintf(out, "\nIdentified syndromes: %s\n", strings.Join(state.Syndromes, "; "))
	}
	fmt.Fprintf(out, "\n%s\n", state.Treatments)
	return nil
}

// readAllStdin reads piped input; an interactive terminal yields "".
func readAllStdin() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
