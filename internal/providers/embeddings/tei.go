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

const teiDefaultURL = "http://localhost:8080"

// TEIProvider embeds through an on-prem text-embeddings-inference server.
type TEIProvider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewTEIProvider creates a TEI embedding provider. The model name is
// whatever the server was started with; it is recorded on nodes for the
// provider-switch check, not sent with requests.
func NewTEIProvider(opts ...Option) *TEIProvider {
	o := applyOptions(opts)

	p := &TEIProvider{
		baseURL:    o.baseURL,
		model:      o.model,
		dimensions: o.dimensions,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	if p.baseURL == "" {
		p.baseURL = teiDefaultURL
	}
	if p.model == "" {
		p.model = "tei"
	}
	if p.dimensions == 0 {
		p.dimensions = 1024
	}
	return p
}

func (p *TEIProvider) Name() string         { return "tei-embeddings" }
func (p *TEIProvider) ProviderName() string { return "tei" }
func (p *TEIProvider) ModelName() string    { return p.model }
func (p *TEIProvider) Dimensions() int      { return p.dimensions }

// Available probes the server health endpoint.
func (p *TEIProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
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

func (p *TEIProvider) RateLimit() providers.RateLimitConfig {
	return providers.RateLimitConfig{} // on-prem; unlimited
}

type teiEmbedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// Embed generates one vector per text via /embed.
func (p *TEIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(teiEmbedRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request; %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tei embed request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tei embed returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var vectors [][]float32
	if err := json.Unmarshal(body, &vectors); err != nil {
		return nil, fmt.Errorf("failed to decode response; %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("tei returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedSingle generates a vector for one text.
func (p *TEIProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}
