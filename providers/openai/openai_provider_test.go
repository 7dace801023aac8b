package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meysamhadeli/doctreeai/providers/models"
	openai_models "github.com/meysamhadeli/doctreeai/providers/openai/models"
	"github.com/meysamhadeli/doctreeai/token_management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, apiKey string) *OpenAIConfig {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	temperature := float32(0.3)
	return NewOpenAIProvider(&OpenAIConfig{
		BaseURL:         server.URL + "/v1/",
		Model:           "gpt-4o-mini",
		ApiKey:          apiKey,
		Temperature:     &temperature,
		Timeout:         5 * time.Second,
		TokenManagement: token_management.NewTokenManager(),
	}).(*OpenAIConfig)
}

func TestSummarize_Success(t *testing.T) {
	var captured openai_models.OpenAIChatCompletionRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(openai_models.OpenAIChatCompletionResponse{
			Choices: []openai_models.Choice{{Message: openai_models.Message{Role: "assistant", Content: "  A greeting file.\n"}}},
			Usage:   openai_models.Usage{PromptTokens: 12, CompletionTokens: 4},
		})
	}, "secret")

	resp, err := provider.Summarize(context.Background(), models.SummaryRequest{System: "sys", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "A greeting file.", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)

	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "hello", captured.Messages[1].Content)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.3, *captured.Temperature, 1e-6)

	total, _, _ := provider.TokenManagement.GetCurrentTokenUsage()
	assert.Equal(t, 16, total)
}

func TestSummarize_ErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
		fatal     bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusRequestTimeout, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusNotFound, false, true},
		{http.StatusBadRequest, false, false},
		{http.StatusRequestEntityTooLarge, false, false},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			}, "secret")

			_, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tc.transient, models.IsTransient(err))
			assert.Equal(t, tc.fatal, models.IsFatal(err))
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestSummarize_MissingKeyIsFatal(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, "")

	_, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "x"})
	assert.True(t, models.IsFatal(err))
}

func TestSummarize_EmptyResponse(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, "secret")

	_, err := provider.Summarize(context.Background(), models.SummaryRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, models.ErrEmptyResponse))
	assert.False(t, models.IsTransient(err))
}

func TestSummarize_CancelledContext(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := provider.Summarize(ctx, models.SummaryRequest{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
