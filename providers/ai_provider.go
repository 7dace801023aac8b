package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/meysamhadeli/doctreeai/providers/contracts"
	"github.com/meysamhadeli/doctreeai/providers/ollama"
	"github.com/meysamhadeli/doctreeai/providers/openai"
	token_contracts "github.com/meysamhadeli/doctreeai/token_management/contracts"
)

// AIProviderConfig is the ai_provider_config section of the configuration.
type AIProviderConfig struct {
	Provider        string                           `mapstructure:"provider" yaml:"provider"`
	BaseURL         string                           `mapstructure:"base_url" yaml:"base_url"`
	Model           string                           `mapstructure:"model" yaml:"model"`
	ApiKey          string                           `mapstructure:"api_key" yaml:"api_key"`
	Temperature     float32                          `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int                              `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout         time.Duration                    `mapstructure:"timeout" yaml:"timeout"`
	TokenManagement token_contracts.ITokenManagement `mapstructure:"-" yaml:"-"`
}

// ChooseProvider builds the summary provider named in the configuration.
func ChooseProvider(config *AIProviderConfig) (contracts.ISummaryProvider, error) {
	temperature := config.Temperature

	switch strings.ToLower(config.Provider) {
	case "openai", "azure", "openai-compatible", "":
		return openai.NewOpenAIProvider(&openai.OpenAIConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			ApiKey:          config.ApiKey,
			Temperature:     &temperature,
			MaxTokens:       config.MaxTokens,
			Timeout:         config.Timeout,
			TokenManagement: config.TokenManagement,
		}), nil
	case "ollama":
		return ollama.NewOllamaProvider(&ollama.OllamaConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     &temperature,
			MaxTokens:       config.MaxTokens,
			Timeout:         config.Timeout,
			TokenManagement: config.TokenManagement,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (expected 'openai' or 'ollama')", config.Provider)
	}
}
