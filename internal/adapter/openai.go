// ABOUTME: Adapter for OpenAI-compatible chat completion APIs
// ABOUTME: Serves OpenAI itself and compatible vendors such as xAI Grok

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultSystemPrompt   = "You are a helpful assistant."
)

// OpenAI calls POST {endpoint}/chat/completions.
type OpenAI struct {
	name     string
	model    string
	endpoint string
	apiKey   string
	pricing  Pricing
	client   *http.Client
}

// OpenAIOptions configures an OpenAI-compatible adapter.
type OpenAIOptions struct {
	Name     string
	Model    string
	Endpoint string
	APIKey   string
	Pricing  Pricing
	Client   *http.Client
}

// NewOpenAI creates an OpenAI-compatible adapter.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	return &OpenAI{
		name:     opts.Name,
		model:    opts.Model,
		endpoint: trimEndpoint(opts.Endpoint, defaultOpenAIEndpoint),
		apiKey:   opts.APIKey,
		pricing:  opts.Pricing,
		client:   clientOrDefault(opts.Client),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Name implements Adapter.
func (a *OpenAI) Name() string { return a.name }

// Capability implements Adapter.
func (a *OpenAI) Capability() Capability { return CapabilityChat }

// Invoke implements Adapter.
func (a *OpenAI) Invoke(ctx context.Context, prompt string) (Reply, error) {
	body := openAIRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: defaultSystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	var resp openAIResponse
	if err := postJSON(ctx, a.client, a.name, a.endpoint+"/chat/completions", headers, body, &resp); err != nil {
		return Reply{}, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Reply{}, fmt.Errorf("%s: %w: no choices in response", a.name, ErrInvalidResponse)
	}

	return Reply{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Cost:         a.pricing.Estimate(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

var _ Adapter = (*OpenAI)(nil)
