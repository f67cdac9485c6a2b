package guideline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiguide/epiguide/internal/log"
)

// mockEmbedder returns deterministic vectors derived from text length.
type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, VectorDimension)
	for i := range v {
		v[i] = float32(len(text)%7) / 7
	}
	return v
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

// mockQuerier records calls and serves canned results.
type mockQuerier struct {
	upserts       []Chunk
	searched      []int
	lastFilter    map[string]string
	results       []Result
	count         int64
	deleted       int64
	upsertErr     error
	searchErr     error
	filteredCalls int
}

func (m *mockQuerier) UpsertChunk(_ context.Context, chunk Chunk, _ pgvector.Vector) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, chunk)
	return nil
}

func (m *mockQuerier) SearchChunks(_ context.Context, _ pgvector.Vector, limit int) ([]Result, error) {
	m.searched = append(m.searched, limit)
	return m.results, m.searchErr
}

func (m *mockQuerier) SearchChunksFiltered(_ context.Context, _ pgvector.Vector, filter map[string]string, limit int) ([]Result, error) {
	m.filteredCalls++
	m.lastFilter = filter
	m.searched = append(m.searched, limit)
	return m.results, m.searchErr
}

func (m *mockQuerier) CountChunks(_ context.Context) (int64, error) {
	return m.count, nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, _ string) (int64, error) {
	return m.deleted, nil
}

func testChunk(id string) Chunk {
	return Chunk{
		ID:           id,
		DocumentName: "NICE Epilepsy Guideline 2025",
		Content:      "First-line treatment for focal seizures is lamotrigine or levetiracetam.",
		Metadata:     map[string]string{"page_number": "42"},
	}
}

func TestStore_AddAll(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := NewStore(querier, embedder, log.NewNop())

	chunks := []Chunk{testChunk("a"), testChunk("b"), testChunk("c")}
	require.NoError(t, store.AddAll(context.Background(), chunks))

	assert.Len(t, querier.upserts, 3)
	// One batched embedder call, not one per chunk.
	assert.Equal(t, 1, embedder.calls)
}

func TestStore_AddAll_Empty(t *testing.T) {
	embedder := &mockEmbedder{}
	store := NewStore(&mockQuerier{}, embedder, log.NewNop())

	require.NoError(t, store.AddAll(context.Background(), nil))
	assert.Zero(t, embedder.calls)
}

func TestStore_Add_EmbedderError(t *testing.T) {
	store := NewStore(&mockQuerier{}, &mockEmbedder{err: errors.New("quota")}, log.NewNop())

	err := store.Add(context.Background(), testChunk("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding")
}

func TestStore_Add_UpsertError(t *testing.T) {
	querier := &mockQuerier{upsertErr: errors.New("connection reset")}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	err := store.Add(context.Background(), testChunk("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a"`)
}

// wrongDimEmbedder returns vectors of the wrong width.
type wrongDimEmbedder struct{ mockEmbedder }

func (w *wrongDimEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 3)
	}
	return out, nil
}

func TestStore_Add_DimensionMismatch(t *testing.T) {
	store := NewStore(&mockQuerier{}, &wrongDimEmbedder{}, log.NewNop())

	err := store.Add(context.Background(), testChunk("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("want %d", VectorDimension))
}

func TestStore_Search(t *testing.T) {
	querier := &mockQuerier{results: []Result{
		{Chunk: testChunk("a"), Similarity: 0.91},
		{Chunk: testChunk("b"), Similarity: 0.77},
	}}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "treatment for Dravet syndrome")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 0.91, results[0].Similarity, 0.001)

	// Default top-k applied.
	require.Len(t, querier.searched, 1)
	assert.Equal(t, 5, querier.searched[0])
	assert.Zero(t, querier.filteredCalls)
}

func TestStore_Search_Options(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	_, err := store.Search(context.Background(), "query",
		WithTopK(3),
		WithFilter("document_name", "ILAE Treatment Guidelines 2006"))
	require.NoError(t, err)

	assert.Equal(t, 1, querier.filteredCalls)
	assert.Equal(t, []int{3}, querier.searched)
	assert.Equal(t, map[string]string{"document_name": "ILAE Treatment Guidelines 2006"}, querier.lastFilter)
}

func TestStore_Search_EmbedderError(t *testing.T) {
	store := NewStore(&mockQuerier{}, &mockEmbedder{err: errors.New("quota")}, log.NewNop())

	_, err := store.Search(context.Background(), "query")
	require.Error(t, err)
}

func TestStore_Search_QuerierError(t *testing.T) {
	querier := &mockQuerier{searchErr: errors.New("relation does not exist")}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	_, err := store.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestStore_CountAndDelete(t *testing.T) {
	querier := &mockQuerier{count: 128, deleted: 64}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(128), count)

	deleted, err := store.DeleteDocument(context.Background(), "NICE Epilepsy Guideline 2025")
	require.NoError(t, err)
	assert.Equal(t, int64(64), deleted)
}
