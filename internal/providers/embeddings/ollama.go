package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codegraphhq/codegraph/internal/providers"
)

const (
	ollamaDefaultURL   = "http://localhost:11434"
	ollamaDefaultModel = "nomic-embed-text"
)

// OllamaProvider embeds through a local Ollama runtime.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(opts ...Option) *OllamaProvider {
	o := applyOptions(opts)

	p := &OllamaProvider{
		baseURL:    o.baseURL,
		model:      o.model,
		dimensions: o.dimensions,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	if p.baseURL == "" {
		p.baseURL = ollamaDefaultURL
	}
	if p.model == "" {
		p.model = ollamaDefaultModel
	}
	if p.dimensions == 0 {
		p.dimensions = 768 // nomic-embed-text default
	}
	return p
}

func (p *OllamaProvider) Name() string         { return "ollama-embeddings" }
func (p *OllamaProvider) ProviderName() string { return "ollama" }
func (p *OllamaProvider) ModelName() string    { return p.model }
func (p *OllamaProvider) Dimensions() int      { return p.dimensions }

// Available probes the runtime; a local server either answers or it doesn't.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) RateLimit() providers.RateLimitConfig {
	return providers.RateLimitConfig{} // local; unlimited
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates one vector per text via /api/embed.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request; %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response; %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}

// EmbedSingle generates a vector for one text.
func (p *OllamaProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}
