package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.InDelta(t, 0.1, config.Temperature, 1e-6)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Provider: ProviderGemini, Models: map[ModelTier]string{}}
	assert.Equal(t, "", config.GetModel(TierStandard))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithModel(TierStandard, "custom-model")

	// Original should be unchanged
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "custom-model", newConfig.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-flash-lite", newConfig.GetModel(TierLite))
	assert.Equal(t, config.MaxTokens, newConfig.MaxTokens)

	assert.Equal(t, "gemini-2.5-flash", config.WithModel(TierStandard, "").GetModel(TierStandard))
}
