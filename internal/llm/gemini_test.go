package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiguide/epiguide/internal/log"
)

// geminiStub returns a test server that responds with the given candidate text.
func geminiStub(t *testing.T, text string, capture *geminiRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]string{{"text": text}},
					},
					"finishReason": "STOP",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClient_Generate(t *testing.T) {
	var captured geminiRequest
	srv := geminiStub(t, "hello from the model", &captured)
	defer srv.Close()

	client := NewClient("test-key", "gemini-2.5-flash", log.NewNop(), WithBaseURL(srv.URL))

	out, err := client.Generate(context.Background(), Request{
		System:      "You are a genetics assistant.",
		Prompt:      "Summarize this variant.",
		Temperature: 0.1,
		MaxTokens:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", out)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are a genetics assistant.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "Summarize this variant.", captured.Contents[0].Parts[0].Text)
	assert.InDelta(t, 0.1, captured.GenerationConfig.Temperature, 0.001)
	assert.Equal(t, 100, captured.GenerationConfig.MaxOutputTokens)
}

func TestClient_Generate_StripsReasoning(t *testing.T) {
	srv := geminiStub(t, "<think>working it out</think>\nthe answer", nil)
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	out, err := client.Generate(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestClient_Generate_JoinsParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]string{{"text": "first "}, {"text": "second"}},
					},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	out, err := client.Generate(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "first second", out)
}

func TestClient_Generate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	_, err := client.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Generate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"error": map[string]any{"code": 400, "message": "invalid model", "status": "INVALID_ARGUMENT"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	_, err := client.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestClient_Generate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}}))
	}))
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	_, err := client.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	srv := geminiStub(t, "too late", nil)
	defer srv.Close()

	client := NewClient("test-key", "test-model", log.NewNop(), WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, Request{Prompt: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
