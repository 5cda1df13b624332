// ABOUTME: Adapter for the Tavily web search API
// ABOUTME: Returns the top results as "title: content" lines for prompt enrichment

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultTavilyEndpoint = "https://api.tavily.com"
	tavilyTopResults      = 3
)

// Tavily calls POST {endpoint}/search. It is a search adapter and never
// competes for the win.
type Tavily struct {
	name     string
	endpoint string
	apiKey   string
	// perSearch is the price of a single search call.
	perSearch float64
	client    *http.Client
}

// TavilyOptions configures a Tavily adapter.
type TavilyOptions struct {
	Name     string
	Endpoint string
	APIKey   string
	// CostPer1K is the price of 1K searches.
	CostPer1K float64
	Client    *http.Client
}

// NewTavily creates a Tavily adapter.
func NewTavily(opts TavilyOptions) *Tavily {
	return &Tavily{
		name:      opts.Name,
		endpoint:  trimEndpoint(opts.Endpoint, defaultTavilyEndpoint),
		apiKey:    opts.APIKey,
		perSearch: opts.CostPer1K / 1000,
		client:    clientOrDefault(opts.Client),
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Name implements Adapter.
func (a *Tavily) Name() string { return a.name }

// Capability implements Adapter.
func (a *Tavily) Capability() Capability { return CapabilitySearch }

// Invoke implements Adapter.
func (a *Tavily) Invoke(ctx context.Context, prompt string) (Reply, error) {
	body := tavilyRequest{APIKey: a.apiKey, Query: prompt, SearchDepth: "basic"}

	var resp tavilyResponse
	if err := postJSON(ctx, a.client, a.name, a.endpoint+"/search", nil, body, &resp); err != nil {
		return Reply{}, err
	}

	if len(resp.Results) == 0 {
		return Reply{}, fmt.Errorf("%s: %w: no search results", a.name, ErrInvalidResponse)
	}

	n := min(len(resp.Results), tavilyTopResults)
	lines := make([]string, 0, n)
	for _, r := range resp.Results[:n] {
		lines = append(lines, r.Title+": "+r.Content)
	}

	return Reply{Text: strings.Join(lines, "\n"), Cost: a.perSearch}, nil
}

var _ Adapter = (*Tavily)(nil)
