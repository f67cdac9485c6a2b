package guideline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/epiguide/epiguide/internal/log"
)

// Embedder generates vectors for corpus passages and queries.
// Satisfied by llm.Embedder; tests substitute a deterministic fake.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Querier defines the database operations the store needs.
// The interface lives with the consumer, not the pgx implementation,
// so Store is unit testable without a database.
type Querier interface {
	UpsertChunk(ctx context.Context, chunk Chunk, embedding pgvector.Vector) error
	SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int) ([]Result, error)
	SearchChunksFiltered(ctx context.Context, embedding pgvector.Vector, filter map[string]string, limit int) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
	DeleteDocument(ctx context.Context, documentName string) (int64, error)
}

// Store manages guideline passages with vector search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a Store.
func NewStore(querier Querier, embedder Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Add embeds one passage and upserts it.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	return s.AddAll(ctx, []Chunk{chunk})
}

// AddAll embeds a batch of passages in one embedder call and upserts them.
// Batching matters during ingestion: the corpus has hundreds of passages
// and per-passage embedding calls would dominate runtime.
func (s *Store) AddAll(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	for i, chunk := range chunks {
		if len(vectors[i]) != VectorDimension {
			return fmt.Errorf("chunk %q: embedding has %d dimensions, want %d", chunk.ID, len(vectors[i]), VectorDimension)
		}
		if err := s.queries.UpsertChunk(ctx, chunk, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
		}
	}

	s.logger.Debug("chunks stored", "count", len(chunks))
	return nil
}

// Search returns the passages most similar to the query, ordered by cosine
// similarity. A query timeout is applied so slow searches fail instead of
// blocking the run.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vector, err := s.embedder.EmbedQuery(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	embedding := pgvector.NewVector(vector)

	var results []Result
	if len(cfg.filter) > 0 {
		results, err = s.queries.SearchChunksFiltered(queryCtx, embedding, cfg.filter, cfg.topK)
	} else {
		results, err = s.queries.SearchChunks(queryCtx, embedding, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return results, nil
}

// Count returns the total number of stored passages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteDocument removes all passages of one source document and returns
// how many were deleted. Used by ingestion for idempotent re-runs.
func (s *Store) DeleteDocument(ctx context.Context, documentName string) (int64, error) {
	deleted, err := s.queries.DeleteDocument(ctx, documentName)
	if err != nil {
		return 0, fmt.Errorf("deleting document %q: %w", documentName, err)
	}
	s.logger.Debug("document deleted", "document", documentName, "chunks", deleted)
	return deleted, nil
}
