package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgxQuerier implements Querier on a pgx connection pool.
// The pool must have pgvector types registered (see db.Connect).
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewQuerier creates a PgxQuerier.
func NewQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

const upsertChunkSQL = `
INSERT INTO guideline_chunks (id, document_name, content, metadata, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	document_name = EXCLUDED.document_name,
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding`

// UpsertChunk inserts or replaces one passage.
func (q *PgxQuerier) UpsertChunk(ctx context.Context, chunk Chunk, embedding pgvector.Vector) error {
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.pool.Exec(ctx, upsertChunkSQL,
		chunk.ID, chunk.DocumentName, chunk.Content, metadata, embedding, createdAt)
	if err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}
	return nil
}

const searchChunksSQL = `
SELECT id, document_name, content, metadata, created_at,
	1 - (embedding <=> $1) AS similarity
FROM guideline_chunks
ORDER BY embedding <=> $1
LIMIT $2`

// SearchChunks performs unfiltered vector search ordered by cosine similarity.
func (q *PgxQuerier) SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int) ([]Result, error) {
	rows, err := q.pool.Query(ctx, searchChunksSQL, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("query search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

const searchChunksFilteredSQL = `
SELECT id, document_name, content, metadata, created_at,
	1 - (embedding <=> $1) AS similarity
FROM guideline_chunks
WHERE metadata @> $2::jsonb
ORDER BY embedding <=> $1
LIMIT $3`

// SearchChunksFiltered performs vector search restricted to passages whose
// metadata contains every filter pair. The filter is always marshaled from
// a map, never interpolated, so the JSONB containment stays parameterized.
func (q *PgxQuerier) SearchChunksFiltered(ctx context.Context, embedding pgvector.Vector, filter map[string]string, limit int) ([]Result, error) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshaling filter: %w", err)
	}

	rows, err := q.pool.Query(ctx, searchChunksFilteredSQL, embedding, filterJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("query filtered search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// rowScanner is the subset of pgx.Rows used by scanResults.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanResults(rows rowScanner) ([]Result, error) {
	results := make([]Result, 0, 8)
	for rows.Next() {
		var (
			chunk      Chunk
			metadata   []byte
			similarity float32
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentName, &chunk.Content, &metadata, &chunk.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("parsing metadata for chunk %q: %w", chunk.ID, err)
			}
		}
		results = append(results, Result{Chunk: chunk, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

// CountChunks returns the total number of stored passages.
func (q *PgxQuerier) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM guideline_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("query count: %w", err)
	}
	return count, nil
}

// DeleteDocument removes every passage of one source document.
func (q *PgxQuerier) DeleteDocument(ctx context.Context, documentName string) (int64, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM guideline_chunks WHERE document_name = $1`, documentName)
	if err != nil {
		return 0, fmt.Errorf("exec delete: %w", err)
	}
	return tag.RowsAffected(), nil
}
