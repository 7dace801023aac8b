package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meysamhadeli/doctreeai/providers/models"
	ollama_models "github.com/meysamhadeli/doctreeai/providers/ollama/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollama_models.OllamaChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.2", req.Model)

		_ = json.NewEncoder(w).Encode(ollama_models.OllamaChatCompletionResponse{
			Message:         ollama_models.Message{Role: "assistant", Content: "Directory of helpers."},
			Done:            true,
			PromptEvalCount: 30,
			EvalCount:       6,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(&OllamaConfig{BaseURL: server.URL + "/api", Model: "llama3.2"})
	resp, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "summarize"})
	require.NoError(t, err)
	assert.Equal(t, "Directory of helpers.", resp.Text)
	assert.Equal(t, 30, resp.InputTokens)
	assert.Equal(t, "ollama", provider.Name())
	assert.Equal(t, "llama3.2", provider.ModelName())
}

func TestOllamaSummarize_ModelNotFoundIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'missing' not found"}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(&OllamaConfig{BaseURL: server.URL + "/api", Model: "missing"})
	_, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, models.IsFatal(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaSummarize_UnreachableIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	provider := NewOllamaProvider(&OllamaConfig{BaseURL: url + "/api", Model: "llama3.2"})
	_, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "x"})
	assert.True(t, models.IsTransient(err))
}
