package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/providers/models"
	ollama_models "github.com/meysamhadeli/doctreeai/providers/ollama/models"
	"github.com/meysamhadeli/doctreeai/providers/transport"
	token_contracts "github.com/meysamhadeli/doctreeai/token_management/contracts"
)

// OllamaConfig implements ISummaryProvider for a local Ollama server.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Temperature     *float32
	MaxTokens       int
	Timeout         time.Duration
	TokenManagement token_contracts.ITokenManagement
	client          *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434/api"
)

// NewOllamaProvider initializes a new Ollama provider.
func NewOllamaProvider(config *OllamaConfig) contracts.ISummaryProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OllamaConfig{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		Model:           config.Model,
		Temperature:     config.Temperature,
		MaxTokens:       config.MaxTokens,
		Timeout:         config.Timeout,
		TokenManagement: config.TokenManagement,
		client:          &http.Client{Timeout: config.Timeout},
	}
}

func (ollamaProvider *OllamaConfig) Name() string { return "ollama" }

func (ollamaProvider *OllamaConfig) ModelName() string { return ollamaProvider.Model }

func (ollamaProvider *OllamaConfig) Summarize(ctx context.Context, request models.SummaryRequest) (*models.SummaryResponse, error) {
	var messages []ollama_models.Message
	if request.System != "" {
		messages = append(messages, ollama_models.Message{Role: "system", Content: request.System})
	}
	messages = append(messages, ollama_models.Message{Role: "user", Content: request.Prompt})

	reqBody := ollama_models.OllamaChatCompletionRequest{
		Model:    ollamaProvider.Model,
		Messages: messages,
		Stream:   false,
		Options: &ollama_models.Options{
			Temperature: ollamaProvider.Temperature,
			NumPredict:  ollamaProvider.MaxTokens,
		},
	}

	var response ollama_models.OllamaChatCompletionResponse
	if err := transport.PostJSON(ctx, ollamaProvider.client, ollamaProvider.BaseURL+"/chat", nil, reqBody, &response); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return nil, models.ErrEmptyResponse
	}

	if ollamaProvider.TokenManagement != nil && response.PromptEvalCount > 0 {
		ollamaProvider.TokenManagement.UsedTokens(response.PromptEvalCount, response.EvalCount)
	}

	return &models.SummaryResponse{
		Text:         content,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}, nil
}
