package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentpipe/internal/config"
	"agentpipe/internal/llmrpc"
)

func TestReadRequirements_PrefersArgsOverStdin(t *testing.T) {
	text, err := readRequirements([]string{"build", "a", "calculator"})
	require.NoError(t, err)
	assert.Equal(t, "build a calculator", text)
}

func TestApplyFlagOverrides_OnlyOverridesSetFlags(t *testing.T) {
	old := provider
	defer func() { provider = old }()

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"
	provider = "gemini"
	applyFlagOverrides(cfg)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestBuildClient_SelectsProviderByName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "gemini"
	client, err := buildClient(cfg)
	require.NoError(t, err)
	_, ok := client.(*llmrpc.GeminiClient)
	assert.True(t, ok)
}

func TestBuildClient_RejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "bogus"
	_, err := buildClient(cfg)
	assert.Error(t, err)
}
