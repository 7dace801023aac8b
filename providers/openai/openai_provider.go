package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/providers/models"
	openai_models "github.com/meysamhadeli/doctreeai/providers/openai/models"
	"github.com/meysamhadeli/doctreeai/providers/transport"
	token_contracts "github.com/meysamhadeli/doctreeai/token_management/contracts"
)

// OpenAIConfig implements ISummaryProvider for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL         string
	Model           string
	ApiKey          string
	Temperature     *float32
	MaxTokens       int
	Timeout         time.Duration
	TokenManagement token_contracts.ITokenManagement
	client          *http.Client
}

const defaultBaseURL = "https://api.openai.com/v1"

var errMissingAPIKey = errors.New("missing API key, set OPENAI_API_KEY or ai_provider_config.api_key")

// NewOpenAIProvider initializes a new OpenAI-compatible provider.
func NewOpenAIProvider(config *OpenAIConfig) contracts.ISummaryProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIConfig{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		Model:           config.Model,
		ApiKey:          config.ApiKey,
		Temperature:     config.Temperature,
		MaxTokens:       config.MaxTokens,
		Timeout:         config.Timeout,
		TokenManagement: config.TokenManagement,
		client:          &http.Client{Timeout: config.Timeout},
	}
}

func (openAIProvider *OpenAIConfig) Name() string { return "openai" }

func (openAIProvider *OpenAIConfig) ModelName() string { return openAIProvider.Model }

func (openAIProvider *OpenAIConfig) Summarize(ctx context.Context, request models.SummaryRequest) (*models.SummaryResponse, error) {
	if openAIProvider.ApiKey == "" {
		return nil, &models.FatalError{Err: errMissingAPIKey}
	}

	var messages []openai_models.Message
	if request.System != "" {
		messages = append(messages, openai_models.Message{Role: "system", Content: request.System})
	}
	messages = append(messages, openai_models.Message{Role: "user", Content: request.Prompt})

	reqBody := openai_models.OpenAIChatCompletionRequest{
		Model:       openAIProvider.Model,
		Messages:    messages,
		Stream:      false,
		Temperature: openAIProvider.Temperature,
		MaxTokens:   openAIProvider.MaxTokens,
	}

	var response openai_models.OpenAIChatCompletionResponse
	err := transport.PostJSON(ctx, openAIProvider.client, openAIProvider.BaseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + openAIProvider.ApiKey}, reqBody, &response)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return nil, models.ErrEmptyResponse
	}

	if openAIProvider.TokenManagement != nil {
		openAIProvider.TokenManagement.UsedTokens(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	}

	return &models.SummaryResponse{
		Text:         strings.TrimSpace(response.Choices[0].Message.Content),
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}, nil
}
