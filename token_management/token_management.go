package token_management

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/meysamhadeli/doctreeai/constants/lipgloss"
	"github.com/meysamhadeli/doctreeai/embed_data"
	"github.com/meysamhadeli/doctreeai/token_management/contracts"
)

// tokenManager is shared by concurrent summarizer workers.
type tokenManager struct {
	mu              sync.Mutex
	usedToken       int
	usedInputToken  int
	usedOutputToken int
}

type details struct {
	MaxTokens                  int     `json:"max_tokens"`
	MaxInputTokens             int     `json:"max_input_tokens"`
	MaxOutputTokens            int     `json:"max_output_tokens"`
	InputCostPerMillionTokens  float64 `json:"input_cost_per_million_tokens,omitempty"`
	OutputCostPerMillionTokens float64 `json:"output_cost_per_million_tokens,omitempty"`
	Mode                       string  `json:"mode"`
}

type Models struct {
	ModelDetails map[string]details `json:"models"`
}

var (
	modelDetailsOnce sync.Once
	modelDetails     Models
	modelDetailsErr  error
)

// NewTokenManager creates a new token manager
func NewTokenManager() contracts.ITokenManagement {
	return &tokenManager{}
}

// UsedTokens accumulates the token count for the run.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.usedInputToken += inputToken
	tm.usedOutputToken += outputToken
	tm.usedToken += inputToken + outputToken
}

func (tm *tokenManager) DisplayTokens(chatProviderName string, chatModel string) {
	total, input, output := tm.GetCurrentTokenUsage()
	cost := tm.CalculateCost(chatProviderName, chatModel, input, output)

	tokenInfo := fmt.Sprintf("Token Used: %d (in %d / out %d) - Cost: %.6f $ - Model: %s", total, input, output, cost, chatModel)
	fmt.Println(lipgloss.BoxStyle.Render(tokenInfo))
}

func (tm *tokenManager) GetCurrentTokenUsage() (total int, input int, output int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.usedToken, tm.usedInputToken, tm.usedOutputToken
}

func (tm *tokenManager) ClearToken() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.usedToken = 0
	tm.usedInputToken = 0
	tm.usedOutputToken = 0
}

// CalculateCost returns zero for models without price details, such as local Ollama models.
func (tm *tokenManager) CalculateCost(providerName string, modelName string, inputToken int, outputToken int) float64 {
	modelDetails, err := getModelDetails(providerName, modelName)
	if err != nil {
		return 0
	}
	inputCost := float64(inputToken) * modelDetails.InputCostPerMillionTokens / 1000000.0
	outputCost := float64(outputToken) * modelDetails.OutputCostPerMillionTokens / 1000000.0
	return inputCost + outputCost
}

func getModelDetails(providerName string, modelName string) (details, error) {
	providerName = strings.ToLower(providerName)
	modelName = strings.ToLower(modelName)

	if strings.HasPrefix(providerName, "azure") {
		modelName = "azure/" + modelName
	}

	modelDetailsOnce.Do(func() {
		modelDetails = Models{ModelDetails: make(map[string]details)}
		modelDetailsErr = json.Unmarshal(embed_data.ModelDetails, &modelDetails)
	})
	if modelDetailsErr != nil {
		return details{}, modelDetailsErr
	}

	model, exists := modelDetails.ModelDetails[modelName]
	if !exists {
		return details{}, fmt.Errorf("model details price with name '%s' not found for provider '%s'", modelName, providerName)
	}
	return model, nil
}
