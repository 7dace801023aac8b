package token_management

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenManager_ConcurrentUsage(t *testing.T) {
	tm := NewTokenManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.UsedTokens(10, 5)
		}()
	}
	wg.Wait()

	total, input, output := tm.GetCurrentTokenUsage()
	assert.Equal(t, 750, total)
	assert.Equal(t, 500, input)
	assert.Equal(t, 250, output)

	tm.ClearToken()
	total, _, _ = tm.GetCurrentTokenUsage()
	assert.Zero(t, total)
}

func TestTokenManager_CalculateCost(t *testing.T) {
	tm := NewTokenManager()

	assert.InDelta(t, 0.75, tm.CalculateCost("openai", "gpt-4o-mini", 1000000, 1000000), 1e-9)
	assert.InDelta(t, 12.5, tm.CalculateCost("azure-openai", "gpt-4o", 1000000, 1000000), 1e-9)
	assert.Zero(t, tm.CalculateCost("ollama", "llama3.2", 1000, 1000))
}
