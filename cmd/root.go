// Package cmd implements the epiguide command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "epiguide",
	Short: "Clinical decision support for epilepsy genetics",
	Long: `epiguide analyzes free-text patient descriptions with genetic variants.

It parses the description into structured fields, looks the variant up in
NCBI ClinVar, generates clinician-readable reports, and retrieves treatment
recommendations from an ingested corpus of epilepsy guidelines.

Requires GEMINI_API_KEY; serve and ingest additionally need PostgreSQL
with the pgvector extension.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
