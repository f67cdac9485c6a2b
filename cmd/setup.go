package cmd

import (
	"context"
	"fmt"

	"github.com/epiguide/epiguide/internal/clinvar"
	"github.com/epiguide/epiguide/internal/config"
	"github.com/epiguide/epiguide/internal/guideline"
	"github.com/epiguide/epiguide/internal/llm"
	"github.com/epiguide/epiguide/internal/log"
	"github.com/epiguide/epiguide/internal/parse"
	"github.com/epiguide/epiguide/internal/planner"
	"github.com/epiguide/epiguide/internal/recommend"
	"github.com/epiguide/epiguide/internal/report"
)

// newGenerator builds the Gemini text generation client from config.
func newGenerator(cfg *config.Config, logger log.Logger) *llm.Client {
	return llm.NewClient(cfg.GeminiAPIKey, cfg.ModelName, logger)
}

// newClinVarClient builds the NCBI E-utilities client from config.
func newClinVarClient(cfg *config.Config, logger log.Logger) *clinvar.Client {
	return clinvar.NewClient(clinvar.Config{
		BaseURL: cfg.ClinVarBaseURL,
		APIKey:  cfg.NCBIAPIKey,
		RetMax:  cfg.MaxSearchResults,
		Logger:  logger,
	})
}

// newPlanner wires the full pipeline. The store may be nil when no database
// is available; the recommend step then sees an empty retrieval for every
// syndrome.
func newPlanner(ctx context.Context, cfg *config.Config, store *guideline.Store, logger log.Logger) (*planner.Planner, error) {
	gen := newGenerator(cfg, logger)

	var retriever recommend.Retriever
	if store != nil {
		retriever = store
	} else {
		retriever = emptyRetriever{}
	}

	rec := recommend.NewRecommender(gen, retriever, recommend.Config{
		TopK:        cfg.RetrievalTopK,
		Temperature: cfg.RecommendTemperature,
		MaxTokens:   cfg.MaxRecommendTokens,
	}, logger)

	return planner.New(
		parse.New(gen, cfg.ParseTemperature, logger),
		newClinVarClient(cfg, logger),
		report.New(gen, cfg.ReportTemperature, cfg.MaxReportTokens, logger),
		rec,
		logger,
	), nil
}

// newStore builds the guideline store with the Gemini embedder.
func newStore(ctx context.Context, cfg *config.Config, querier guideline.Querier, logger log.Logger) (*guideline.Store, error) {
	embedder, err := llm.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedderModel)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return guideline.NewStore(querier, embedder, logger), nil
}

// emptyRetriever serves lookup-only modes with no guideline database.
type emptyRetriever struct{}

func (emptyRetriever) Search(_ context.Context, _ string, _ ...guideline.SearchOption) ([]guideline.Result, error) {
	return nil, nil
}
