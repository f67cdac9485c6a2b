// Package planner orchestrates the three pipeline steps: parse the patient
// description, look the variant up in ClinVar and summarize each record,
// then synthesize guideline-backed treatment recommendations.
//
// The pipeline is strictly linear with no retries. A failing step aborts the
// run; a parse that cannot extract a gene and variant degrades to the empty
// lookup state instead.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epiguide/epiguide/internal/clinvar"
	"github.com/epiguide/epiguide/internal/log"
	"github.com/epiguide/epiguide/internal/parse"
	"github.com/epiguide/epiguide/internal/report"
)

// ErrUnknownSyndrome is returned by Recommend when the requested syndrome
// was not among those identified by the lookup step.
var ErrUnknownSyndrome = errors.New("syndrome not identified by variant lookup")

// State is the transient record of one pipeline run. It lives for the
// duration of the run and is never persisted.
type State struct {
	RunID      uuid.UUID            `json:"run_id"`
	Input      string               `json:"input"`
	Parsed     parse.Parsed         `json:"parsed"`
	Lookup     clinvar.SearchResult `json:"lookup"`
	Reports    []report.Report      `json:"reports"`
	Syndromes  []string             `json:"syndromes"`
	Treatments string               `json:"treatments"`
}

// InputParser extracts structured variant fields from free text.
type InputParser interface {
	Parse(ctx context.Context, text string) (parse.Parsed, error)
}

// VariantSearcher queries ClinVar for a gene and variant.
type VariantSearcher interface {
	Search(ctx context.Context, gene, variant string) (clinvar.SearchResult, error)
}

// ReportSummarizer turns one ClinVar record into a clinician report.
type ReportSummarizer interface {
	Summarize(ctx context.Context, gene, variant string, rec clinvar.Record) (report.Report, error)
}

// TreatmentRecommender synthesizes treatment pathways for syndromes.
type TreatmentRecommender interface {
	Recommend(ctx context.Context, patientSummary string, syndromes []string) (string, error)
	RecommendOne(ctx context.Context, patientSummary, syndrome string) (string, error)
}

// Planner wires the pipeline steps together.
type Planner struct {
	parser      InputParser
	searcher    VariantSearcher
	summarizer  ReportSummarizer
	recommender TreatmentRecommender
	logger      log.Logger
}

// New creates a Planner.
func New(parser InputParser, searcher VariantSearcher, summarizer ReportSummarizer, recommender TreatmentRecommender, logger log.Logger) *Planner {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Planner{
		parser:      parser,
		searcher:    searcher,
		summarizer:  summarizer,
		recommender: recommender,
		logger:      logger,
	}
}

// Run executes the full pipeline on a free-text patient description.
//
// When the parse step cannot extract both a gene and a variant, the lookup
// is skipped and the run completes with an empty state: no reports, no
// syndromes, and the no-syndromes treatment message.
func (p *Planner) Run(ctx context.Context, text string) (State, error) {
	state := State{RunID: uuid.New(), Input: text}
	start := time.Now()

	parsed, err := p.parser.Parse(ctx, text)
	if err != nil {
		return state, fmt.Errorf("parse step: %w", err)
	}
	state.Parsed = parsed

	if parsed.HasTarget() {
		if err := p.lookup(ctx, &state, parsed.Gene, parsed.Variant); err != nil {
			return state, err
		}
	} else {
		p.logger.Info("no gene and variant extracted, skipping lookup", "run_id", state.RunID)
	}

	// The raw description is the patient summary for retrieval; the
	// gene/variant form is only used when no free text exists.
	treatments, err := p.recommender.Recommend(ctx, state.Input, state.Syndromes)
	if err != nil {
		return state, fmt.Errorf("recommend step: %w", err)
	}
	state.Treatments = treatments

	p.logger.Info("pipeline run complete",
		"run_id", state.RunID,
		"gene", state.Parsed.Gene,
		"variant", state.Parsed.Variant,
		"records", len(state.Lookup.IDs),
		"syndromes", len(state.Syndromes),
		"duration", time.Since(start))

	return state, nil
}

// Lookup executes only the variant lookup step for an explicit gene and
// variant, returning the run state with reports and syndromes filled in.
func (p *Planner) Lookup(ctx context.Context, gene, variant string) (State, error) {
	state := State{
		RunID: uuid.New(),
		Parsed: parse.Parsed{
			Gene:         gene,
			Variant:      variant,
			VariantType:  parse.NotAvailable,
			Demographics: map[string]any{},
			Phenotypes:   []string{},
		},
	}
	if err := p.lookup(ctx, &state, gene, variant); err != nil {
		return state, err
	}
	return state, nil
}

// Recommend generates the treatment section for one syndrome previously
// identified for this gene and variant. Requests for syndromes outside the
// known set fail with ErrUnknownSyndrome.
func (p *Planner) Recommend(ctx context.Context, gene, variant, syndrome string, known []string) (string, error) {
	found := false
	for _, s := range known {
		if s == syndrome {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("%q: %w", syndrome, ErrUnknownSyndrome)
	}
	return p.recommender.RecommendOne(ctx, patientSummary(gene, variant), syndrome)
}

// lookup runs the ClinVar search and per-record summaries, filling state.
// Zero hits is a valid empty state, not an error.
func (p *Planner) lookup(ctx context.Context, state *State, gene, variant string) error {
	result, err := p.searcher.Search(ctx, gene, variant)
	if err != nil {
		return fmt.Errorf("lookup step: %w", err)
	}
	state.Lookup = result

	if len(result.Records) == 0 {
		p.logger.Info("no ClinVar records found",
			"run_id", state.RunID, "gene", gene, "variant", variant)
		return nil
	}

	reports := make([]report.Report, 0, len(result.Records))
	for _, rec := range result.Records {
		rep, err := p.summarizer.Summarize(ctx, gene, variant, rec)
		if err != nil {
			return fmt.Errorf("lookup step: %w", err)
		}
		reports = append(reports, rep)
	}
	state.Reports = reports
	state.Syndromes = report.Dedupe(reports)
	return nil
}

// patientSummary is the retrieval-query form of the parsed target.
func patientSummary(gene, variant string) string {
	return fmt.Sprintf("Gene: %s, Variant: %s", gene, variant)
}
