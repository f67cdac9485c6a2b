// Package guideline stores and searches the treatment guideline corpus.
//
// Passages live in PostgreSQL with pgvector embeddings; retrieval is cosine
// similarity over 768-dimensional Gemini embeddings.
package guideline

import "time"

// VectorDimension is the embedding width of the corpus schema.
// Must match the vector(768) column in db/migrations.
const VectorDimension = 768

// Chunk is one corpus passage.
type Chunk struct {
	ID           string            // Deterministic UUID derived from document + position
	DocumentName string            // Source document, e.g. "NICE Epilepsy Guideline 2025"
	Content      string            // Passage text
	Metadata     map[string]string // page_number, section, ...
	CreatedAt    time.Time
}

// Result is a single search hit with its similarity score.
type Result struct {
	Chunk
	Similarity float32 // Cosine similarity score (0-1)
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// defaultSearchTimeout bounds vector search queries so a slow index scan
// cannot block a pipeline run.
const defaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
// Example: WithFilter("document_name", "ILAE Treatment Guidelines 2006")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
