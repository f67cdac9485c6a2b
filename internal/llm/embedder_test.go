package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiguide/epiguide/internal/guideline"
)

// The guideline store consumes the embedder through its own interface.
var _ guideline.Embedder = (*Embedder)(nil)

func TestNewEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), "", "text-embedding-004")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestEmbedTaskTypes(t *testing.T) {
	// Document and query sides must use distinct task type wire values.
	assert.Equal(t, "RETRIEVAL_DOCUMENT", taskRetrievalDocument)
	assert.Equal(t, "RETRIEVAL_QUERY", taskRetrievalQuery)
	assert.NotEqual(t, taskRetrievalDocument, taskRetrievalQuery)
}
