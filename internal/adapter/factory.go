// ABOUTME: Builds the adapter registry from configuration
// ABOUTME: Resolves credentials at startup so a missing key fails before serving

package adapter

import (
	"fmt"
	"net/http"
	"os"

	"github.com/2389/fanout-gateway/internal/config"
)

// Default environment variables holding each kind's credential.
var defaultKeyEnv = map[string]string{
	config.KindOpenAI:    "OPENAI_API_KEY",
	config.KindAnthropic: "CLAUDE_API_KEY",
	config.KindGemini:    "GEMINI_API_KEY",
	config.KindTavily:    "TAVILY_API_KEY",
}

// FromConfig builds one adapter per entry, in order, sharing client.
func FromConfig(cfgs []config.AdapterConfig, client *http.Client) (*Registry, error) {
	adapters := make([]Adapter, 0, len(cfgs))
	for _, c := range cfgs {
		a, err := build(c, client)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return NewRegistry(adapters...)
}

func build(c config.AdapterConfig, client *http.Client) (Adapter, error) {
	key, err := resolveKey(c)
	if err != nil {
		return nil, err
	}
	pricing := PricingFor(c.Model, c.CostPer1KInput, c.CostPer1KOutput)

	switch c.Kind {
	case config.KindOpenAI:
		return NewOpenAI(OpenAIOptions{
			Name: c.Name, Model: c.Model, Endpoint: c.Endpoint,
			APIKey: key, Pricing: pricing, Client: client,
		}), nil
	case config.KindAnthropic:
		return NewAnthropic(AnthropicOptions{
			Name: c.Name, Model: c.Model, Endpoint: c.Endpoint,
			APIKey: key, MaxTokens: c.MaxTokens, Pricing: pricing, Client: client,
		}), nil
	case config.KindGemini:
		return NewGemini(GeminiOptions{
			Name: c.Name, Model: c.Model, Endpoint: c.Endpoint,
			APIKey: key, Pricing: pricing, Client: client,
		}), nil
	case config.KindTavily:
		return NewTavily(TavilyOptions{
			Name: c.Name, Endpoint: c.Endpoint,
			APIKey: key, CostPer1K: c.CostPer1KInput, Client: client,
		}), nil
	default:
		return nil, fmt.Errorf("adapter %q: unknown kind %q", c.Name, c.Kind)
	}
}

// resolveKey prefers the inline key, then api_key_env, then the kind's default variable.
func resolveKey(c config.AdapterConfig) (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	env := c.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv[c.Kind]
	}
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("adapter %q: no api key (set api_key or %s)", c.Name, env)
}
