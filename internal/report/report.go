// Package report turns raw ClinVar records into clinician-readable reports
// and extracts the epilepsy syndrome names each record mentions.
package report

import (
	"context"
	"fmt"

	"github.com/epiguide/epiguide/internal/clinvar"
	"github.com/epiguide/epiguide/internal/llm"
	"github.com/epiguide/epiguide/internal/log"
)

// Report is the per-record output of the lookup step.
type Report struct {
	VariantID string   `json:"variant_id"`
	Title     string   `json:"title"`
	Text      string   `json:"report"`
	Syndromes []string `json:"syndromes"`
}

const systemPrompt = "You are an expert in epilepsy genetics who helps epileptologists and neurologists interpret genetic variant data for patients with epilepsy. You provide clear, structured clinical summaries that emphasize epilepsy phenotypes, seizure characteristics, and developmental outcomes."

const promptTemplate = `You are an expert in genetic epilepsy and epilepsy genetics.

GENE: %s
VARIANT: %s

RAW CLINVAR DATA (JSON):
%s

INSTRUCTIONS:
Generate a clinical report for epileptologists with the following sections (extract from the JSON provided):

1. **Variant Summary**
   - Extract from: title, obj_type, variation_set[0].cdna_change, protein_change
   - Include: Gene symbol, variant notation (protein and cDNA changes), variant type
   - Chromosomal location from: variation_set[0].variation_loc (use 'current' status)

2. **Clinical Significance**
   - Extract from: germline_classification.description, germline_classification.review_status, germline_classification.last_evaluated
   - Include pathogenicity classification, review status, last evaluation date
   - Provide brief clinical interpretation for epileptologists

3. **Epilepsy Syndromes**
   - Extract from: germline_classification.trait_set
   - For each epilepsy-related syndrome in trait_set:
     * Get trait_name
     * Extract sources from trait_xrefs (look for OMIM, Orphanet, MONDO)
     * Format as: "Syndrome Name (OMIM:######, Orphanet:####)"
   - Focus on syndromes containing: epilepsy, seizure, EIEE, Dravet, Lennox, West syndrome, etc.

4. **Clinical Phenotypes (HPO)**
   - Extract from: germline_classification.trait_set
   - For traits with trait_xrefs containing "Human Phenotype Ontology":
     * Format as: "Phenotype name (HPO:HP:#######)"
   - Emphasize epilepsy-related phenotypes

5. **Other Associated Conditions**
   - List non-epilepsy conditions from trait_set with their database sources
   - Skip generic terms like "Inborn genetic diseases" or "not provided"
   - Include MedGen, MeSH, and other relevant database references

6. **Molecular Details** (if available)
   - Extract from: molecular_consequence_list, protein_change
   - Include cross-references from: variation_set[0].variation_xrefs (dbSNP, ClinGen)

NOTE: The JSON structure may vary. Extract available information and keep language clear for epileptologists.

After the clinical report, provide a JSON list of ONLY epilepsy-related syndromes on a new line:

EPILEPSY_SYNDROMES_JSON
["Syndrome 1", "Syndrome 2", "Syndrome 3"]

Rules for the syndrome list:
• Include ONLY syndromes related to: epilepsy, seizure, EIEE, Dravet, Lennox, West syndrome, convulsion
• EXCLUDE: Generic terms ("Inborn genetic diseases"), HPO phenotypes alone, "not provided"
• If no epilepsy syndromes found: []

Example format:

EPILEPSY_SYNDROMES_JSON
["Developmental and epileptic encephalopathy", "Benign familial neonatal seizures, 1"]
`

// Summarizer produces one Report per ClinVar record.
type Summarizer struct {
	gen         llm.Generator
	temperature float32
	maxTokens   int
	logger      log.Logger
}

// New creates a Summarizer.
func New(gen llm.Generator, temperature float32, maxTokens int, logger log.Logger) *Summarizer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Summarizer{gen: gen, temperature: temperature, maxTokens: maxTokens, logger: logger}
}

// Summarize generates the clinician report for a single record and extracts
// its epilepsy syndrome list. Generation errors abort the lookup step.
func (s *Summarizer) Summarize(ctx context.Context, gene, variant string, rec clinvar.Record) (Report, error) {
	prompt := fmt.Sprintf(promptTemplate, gene, variant, string(rec.Raw))

	reply, err := s.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return Report{}, fmt.Errorf("summarizing ClinVar record %s: %w", rec.ID, err)
	}

	text, syndromes := parseResponse(reply)

	s.logger.Debug("record summarized",
		"variant_id", rec.ID,
		"report_length", len(text),
		"syndromes", syndromes)

	return Report{
		VariantID: rec.ID,
		Title:     rec.Title,
		Text:      text,
		Syndromes: syndromes,
	}, nil
}

// Dedupe returns the unique syndrome names across reports, preserving
// first-seen order.
func Dedupe(reports []Report) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range reports {
		for _, syn := range r.Syndromes {
			if _, ok := seen[syn]; ok {
				continue
			}
			seen[syn] = struct{}{}
			out = append(out, syn)
		}
	}
	return out
}
