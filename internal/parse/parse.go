// Package parse extracts structured variant fields from free-text patient
// descriptions using a single LLM call.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/epiguide/epiguide/internal/llm"
	"github.com/epiguide/epiguide/internal/log"
)

// NotAvailable marks a field the model could not extract.
const NotAvailable = "NA"

// Parsed is the structured form of a patient description.
type Parsed struct {
	Gene         string         `json:"gene"`
	Variant      string         `json:"variant"`
	VariantType  string         `json:"variant_type"`
	Demographics map[string]any `json:"demographics"`
	Phenotypes   []string       `json:"phenotypes"`
}

// HasTarget reports whether the record carries enough to run a ClinVar
// lookup. A record with both gene and variant missing skips straight to
// the empty lookup state.
func (p Parsed) HasTarget() bool {
	return p.Gene != "" && p.Gene != NotAvailable &&
		p.Variant != "" && p.Variant != NotAvailable
}

// fallback is the degraded record returned when the model's reply cannot
// be parsed. The pipeline continues with it rather than aborting.
func fallback() Parsed {
	return Parsed{
		Gene:         NotAvailable,
		Variant:      NotAvailable,
		VariantType:  NotAvailable,
		Demographics: map[string]any{},
		Phenotypes:   []string{},
	}
}

const promptTemplate = `Parse the following patient description into a structured dictionary. Extract:
- gene: Gene name (e.g., 'TSC2', 'SCN1A')
- variant: Variant notation (e.g., 'p.Arg905Gln', 'c.1234G>A')
- variant_type: Type of variant (missense, nonsense, frameshift, etc.)
- demographics: Dictionary with age, sex, ethnicity if mentioned
- phenotypes: List of symptoms/features mentioned

Use 'NA' for any missing fields. Return ONLY a valid JSON dictionary, with no other text or formatting.

Patient description: %s`

// Parser turns patient descriptions into Parsed records.
type Parser struct {
	gen         llm.Generator
	temperature float32
	logger      log.Logger
}

// New creates a Parser. Temperature should be 0 for deterministic extraction.
func New(gen llm.Generator, temperature float32, logger log.Logger) *Parser {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Parser{gen: gen, temperature: temperature, logger: logger}
}

// Parse extracts structured fields from a free-text description.
//
// Generation failures and unparseable replies degrade to the all-NA record;
// the lookup step then reports the empty state instead of crashing the run.
// Only context cancellation aborts.
func (p *Parser) Parse(ctx context.Context, text string) (Parsed, error) {
	reply, err := p.gen.Generate(ctx, llm.Request{
		Prompt:      fmt.Sprintf(promptTemplate, text),
		Temperature: p.temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Parsed{}, fmt.Errorf("parsing patient description: %w", err)
		}
		p.logger.Warn("parse generation failed, degrading to empty record", "error", err)
		return fallback(), nil
	}

	parsed, err := cleanAndParse(reply)
	if err != nil {
		p.logger.Warn("parse reply not valid JSON, degrading to empty record", "error", err)
		return fallback(), nil
	}

	p.logger.Debug("parsed patient description",
		"gene", parsed.Gene,
		"variant", parsed.Variant,
		"variant_type", parsed.VariantType,
		"phenotypes", len(parsed.Phenotypes))

	return parsed, nil
}

// jsonObjectPattern finds the outermost {...} region in a noisy reply.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// cleanAndParse strips reasoning tags and code fences, then parses JSON,
// falling back to the first {...} region in the reply.
func cleanAndParse(reply string) (Parsed, error) {
	s := llm.StripReasoning(reply)
	s = stripFences(s)

	var parsed Parsed
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return normalize(parsed), nil
	}

	if match := jsonObjectPattern.FindString(s); match != "" {
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			return normalize(parsed), nil
		}
	}

	return Parsed{}, fmt.Errorf("no JSON object in reply")
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// normalize fills nil collections and empty scalar fields so callers never
// see a partially-initialized record.
func normalize(p Parsed) Parsed {
	if p.Gene == "" {
		p.Gene = NotAvailable
	}
	if p.Variant == "" {
		p.Variant = NotAvailable
	}
	if p.VariantType == "" {
		p.VariantType = NotAvailable
	}
	if p.Demographics == nil {
		p.Demographics = map[string]any{}
	}
	if p.Phenotypes == nil {
		p.Phenotypes = []string{}
	}
	return p
}
