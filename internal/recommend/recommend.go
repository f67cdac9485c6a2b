// Package recommend turns identified epilepsy syndromes into guideline-backed
// treatment pathways.
//
// For each syndrome the recommender retrieves the most similar guideline
// passages from the vector store and asks the model to synthesize a cited
// treatment pathway from them. Sections for all syndromes are concatenated
// into one markdown document.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/epiguide/epiguide/internal/guideline"
	"github.com/epiguide/epiguide/internal/llm"
	"github.com/epiguide/epiguide/internal/log"
)

// NoSyndromesMessage is returned when there is nothing to recommend for.
const NoSyndromesMessage = "No syndromes identified to recommend treatments for."

// Retriever is the guideline search surface the recommender needs.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...guideline.SearchOption) ([]guideline.Result, error)
}

const promptTemplate = `You are an expert in epilepsy treatment guidelines. Based on the following retrieved context from official guidelines,
recommend a treatment pathway for the epilepsy syndromes: %s.

Retrieved context (each chunk followed by its source):
%s

Provide a clear, step-by-step treatment pathway for each syndrome listed, citing relevant guidelines where possible.
For each key piece of information, cite the source in the exact format: [document name(year), section name, page number]
immediately after the statement. Use the sources provided in the context.

Keep the response concise and focused on evidence-based recommendations.`

// Recommender generates treatment pathways grounded in retrieved guidelines.
type Recommender struct {
	gen         llm.Generator
	retriever   Retriever
	topK        int
	temperature float32
	maxTokens   int
	logger      log.Logger
}

// Config holds Recommender settings.
type Config struct {
	TopK        int
	Temperature float32
	MaxTokens   int
}

// NewRecommender creates a Recommender.
func NewRecommender(gen llm.Generator, retriever Retriever, cfg Config, logger log.Logger) *Recommender {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Recommender{
		gen:         gen,
		retriever:   retriever,
		topK:        cfg.TopK,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Recommend produces a combined treatment document for the given syndromes.
//
// Each syndrome gets its own "## Treatment for <syndrome>" section. Syndromes
// with no matching guideline passages get a section saying so instead of an
// error; retrieval and generation failures abort.
func (r *Recommender) Recommend(ctx context.Context, patientSummary string, syndromes []string) (string, error) {
	if len(syndromes) == 0 {
		return NoSyndromesMessage, nil
	}

	sections := make([]string, 0, len(syndromes))
	for _, syndrome := range syndromes {
		section, err := r.recommendOne(ctx, patientSummary, syndrome)
		if err != nil {
			return "", err
		}
		sections = append(sections, section)
	}
	return strings.Join(sections, "\n"), nil
}

// RecommendOne produces the treatment section for a single syndrome.
func (r *Recommender) RecommendOne(ctx context.Context, patientSummary, syndrome string) (string, error) {
	return r.recommendOne(ctx, patientSummary, syndrome)
}

func (r *Recommender) recommendOne(ctx context.Context, patientSummary, syndrome string) (string, error) {
	start := time.Now()

	query := fmt.Sprintf("How would you treat patient: %s possibly diagnosed by %s", patientSummary, syndrome)
	results, err := r.retriever.Search(ctx, query, guideline.WithTopK(r.topK))
	if err != nil {
		return "", fmt.Errorf("retrieving guidelines for %q: %w", syndrome, err)
	}

	if len(results) == 0 {
		r.logger.Warn("no guideline passages found", "syndrome", syndrome)
		return fmt.Sprintf("## Treatment for %s\n\nNo treatment information found in vector database.\n", syndrome), nil
	}

	prompt := fmt.Sprintf(promptTemplate, syndrome, formatContext(results))
	text, err := r.gen.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating treatment pathway for %q: %w", syndrome, err)
	}

	r.logger.Info("treatment pathway generated",
		"syndrome", syndrome,
		"passages", len(results),
		"duration", time.Since(start))

	return fmt.Sprintf("## Treatment for %s\n\n%s\n", syndrome, text), nil
}

// formatContext renders retrieved passages with their provenance so the model
// can cite them.
func formatContext(results []guideline.Result) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, fmt.Sprintf("%s\nSource: %s", res.Content, formatSource(res.Chunk)))
	}
	return strings.Join(parts, "\n\n")
}

func formatSource(chunk guideline.Chunk) string {
	doc := chunk.Metadata["document_name"]
	if doc == "" {
		doc = chunk.DocumentName
	}
	if doc == "" {
		doc = "Unknown Document"
	}
	page := chunk.Metadata["page_number"]
	if page == "" {
		page = "Unknown"
	}
	return fmt.Sprintf("%s, page %s", doc, page)
}
