// ABOUTME: Tests for building adapters from configuration
// ABOUTME: Covers credential resolution order and kind dispatch

package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanout-gateway/internal/config"
)

func TestFromConfig(t *testing.T) {
	t.Setenv("GROK_API_KEY", "xai")
	t.Setenv("CLAUDE_API_KEY", "anthropic")
	t.Setenv("TAVILY_API_KEY", "tavily")

	reg, err := FromConfig([]config.AdapterConfig{
		{Name: "grok", Kind: config.KindOpenAI, Model: "grok-3-mini", APIKeyEnv: "GROK_API_KEY"},
		{Name: "claude", Kind: config.KindAnthropic, Model: "claude-3-5-haiku-latest"},
		{Name: "gemini", Kind: config.KindGemini, Model: "gemini-1.5-flash", APIKey: "inline"},
		{Name: "tavily", Kind: config.KindTavily},
	}, NewHTTPClient(4))
	require.NoError(t, err)

	assert.Equal(t, []string{"grok", "claude", "gemini", "tavily"}, reg.Names())

	all := reg.All()
	assert.IsType(t, &OpenAI{}, all[0])
	assert.IsType(t, &Anthropic{}, all[1])
	assert.IsType(t, &Gemini{}, all[2])
	assert.IsType(t, &Tavily{}, all[3])

	assert.Equal(t, "xai", all[0].(*OpenAI).apiKey)
	assert.Equal(t, "anthropic", all[1].(*Anthropic).apiKey)
	assert.Equal(t, "inline", all[2].(*Gemini).apiKey)
	assert.Len(t, reg.ByCapability(CapabilityChat), 3)
}

func TestFromConfig_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := FromConfig([]config.AdapterConfig{
		{Name: "gemini", Kind: config.KindGemini, Model: "gemini-1.5-flash"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestFromConfig_UnknownKind(t *testing.T) {
	_, err := FromConfig([]config.AdapterConfig{
		{Name: "x", Kind: "cohere", APIKey: "k"},
	}, nil)
	assert.ErrorContains(t, err, "unknown kind")
}
