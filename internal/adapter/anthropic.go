// ABOUTME: Adapter for the Anthropic Messages API
// ABOUTME: Sends one user turn and joins the text blocks of the reply

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultAnthropicEndpoint  = "https://api.anthropic.com"
	defaultAnthropicMaxTokens = 1024
	anthropicVersion          = "2023-06-01"
)

// Anthropic calls POST {endpoint}/v1/messages.
type Anthropic struct {
	name      string
	model     string
	endpoint  string
	apiKey    string
	maxTokens int
	pricing   Pricing
	client    *http.Client
}

// AnthropicOptions configures an Anthropic adapter.
type AnthropicOptions struct {
	Name      string
	Model     string
	Endpoint  string
	APIKey    string
	MaxTokens int
	Pricing   Pricing
	Client    *http.Client
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(opts AnthropicOptions) *Anthropic {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &Anthropic{
		name:      opts.Name,
		model:     opts.Model,
		endpoint:  trimEndpoint(opts.Endpoint, defaultAnthropicEndpoint),
		apiKey:    opts.APIKey,
		maxTokens: maxTokens,
		pricing:   opts.Pricing,
		client:    clientOrDefault(opts.Client),
	}
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Name implements Adapter.
func (a *Anthropic) Name() string { return a.name }

// Capability implements Adapter.
func (a *Anthropic) Capability() Capability { return CapabilityChat }

// Invoke implements Adapter.
func (a *Anthropic) Invoke(ctx context.Context, prompt string) (Reply, error) {
	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, a.client, a.name, a.endpoint+"/v1/messages", headers, body, &resp); err != nil {
		return Reply{}, err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return Reply{}, fmt.Errorf("%s: %w: no text content in response", a.name, ErrInvalidResponse)
	}

	return Reply{
		Text:         sb.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         a.pricing.Estimate(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}

var _ Adapter = (*Anthropic)(nil)
