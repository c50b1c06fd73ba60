package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deckforge/DeckForge/internal/pkg/env"
)

// Request describes one deck generation.
type Request struct {
	Prompt     string `json:"prompt"`
	SlideCount int    `json:"slide_count"`
}

// Slide is one generated slide.
type Slide struct {
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets"`
}

// Deck is the generated presentation content.
type Deck struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Provider is the external AI collaborator that actually produces deck
// content. The ledger never reasons about its internals, only about whether
// a call succeeded.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Deck, error)
}

// httpProvider calls the configured provider endpoint. Timeouts are the
// caller's concern and arrive through ctx.
type httpProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPProviderFromEnv builds the provider client from AI_PROVIDER_URL and
// AI_PROVIDER_API_KEY.
func NewHTTPProviderFromEnv() Provider {
	return &httpProvider{
		endpoint: env.GetEnv("AI_PROVIDER_URL", ""),
		apiKey:   env.GetEnv("AI_PROVIDER_API_KEY", ""),
		client:   &http.Client{},
	}
}

func (p *httpProvider) Generate(ctx context.Context, req Request) (*Deck, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("AI provider endpoint is not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var deck Deck
	if err := json.NewDecoder(resp.Body).Decode(&deck); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return &deck, nil
}
