// ABOUTME: Adapter for the Google Gemini generateContent API
// ABOUTME: Authenticates with the x-goog-api-key header and reads the first candidate part

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// Gemini calls POST {endpoint}/v1beta/models/{model}:generateContent.
type Gemini struct {
	name     string
	model    string
	endpoint string
	apiKey   string
	pricing  Pricing
	client   *http.Client
}

// GeminiOptions configures a Gemini adapter.
type GeminiOptions struct {
	Name     string
	Model    string
	Endpoint string
	APIKey   string
	Pricing  Pricing
	Client   *http.Client
}

// NewGemini creates a Gemini adapter.
func NewGemini(opts GeminiOptions) *Gemini {
	return &Gemini{
		name:     opts.Name,
		model:    opts.Model,
		endpoint: trimEndpoint(opts.Endpoint, defaultGeminiEndpoint),
		apiKey:   opts.APIKey,
		pricing:  opts.Pricing,
		client:   clientOrDefault(opts.Client),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Name implements Adapter.
func (a *Gemini) Name() string { return a.name }

// Capability implements Adapter.
func (a *Gemini) Capability() Capability { return CapabilityChat }

// Invoke implements Adapter.
func (a *Gemini) Invoke(ctx context.Context, prompt string) (Reply, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	target := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.endpoint, url.PathEscape(a.model))
	headers := map[string]string{"x-goog-api-key": a.apiKey}

	var resp geminiResponse
	if err := postJSON(ctx, a.client, a.name, target, headers, body, &resp); err != nil {
		return Reply{}, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
		strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text) == "" {
		return Reply{}, fmt.Errorf("%s: %w: no candidates in response", a.name, ErrInvalidResponse)
	}

	in, out := resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount
	return Reply{
		Text:         resp.Candidates[0].Content.Parts[0].Text,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         a.pricing.Estimate(in, out),
	}, nil
}

var _ Adapter = (*Gemini)(nil)
