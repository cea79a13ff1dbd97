package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/codegraphhq/codegraph/internal/providers"
)

const (
	googleEmbeddingsURL = "https://generativelanguage.googleapis.com/v1beta/models"
	googleDefaultModel  = "text-embedding-004"
)

// GoogleProvider embeds through the Gemini API. Raw REST; the official SDK
// buys nothing for a single endpoint.
type GoogleProvider struct {
	apiKey      string
	model       string
	dimensions  int
	httpClient  *http.Client
	rateLimiter *providers.RateLimiter
}

// NewGoogleProvider creates a Google embedding provider. The API key
// defaults to GEMINI_API_KEY.
func NewGoogleProvider(opts ...Option) *GoogleProvider {
	o := applyOptions(opts)

	p := &GoogleProvider{
		apiKey:     o.apiKey,
		model:      o.model,
		dimensions: o.dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if p.model == "" {
		p.model = googleDefaultModel
	}
	if p.dimensions == 0 {
		p.dimensions = 768 // text-embedding-004 default
	}

	p.rateLimiter = providers.NewRateLimiter(p.RateLimit())
	return p
}

func (p *GoogleProvider) Name() string         { return "google-embeddings" }
func (p *GoogleProvider) ProviderName() string { return "google" }
func (p *GoogleProvider) ModelName() string    { return p.model }
func (p *GoogleProvider) Dimensions() int      { return p.dimensions }

func (p *GoogleProvider) Available() bool {
	return p.apiKey != ""
}

func (p *GoogleProvider) RateLimit() providers.RateLimitConfig {
	return providers.RateLimitConfig{RequestsPerMinute: 1500, BurstSize: 100}
}

type googleEmbedRequest struct {
	Requests []googleContentRequest `json:"requests"`
}

type googleContentRequest struct {
	Model   string        `json:"model"`
	Content googleContent `json:"content"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed generates one vector per text via batchEmbedContents.
func (p *GoogleProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.Available() {
		return nil, fmt.Errorf("google embeddings provider not available; GEMINI_API_KEY not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed; %w", err)
	}

	reqBody := googleEmbedRequest{Requests: make([]googleContentRequest, len(texts))}
	for i, text := range texts {
		reqBody.Requests[i] = googleContentRequest{
			Model:   "models/" + p.model,
			Content: googleContent{Parts: []googlePart{{Text: text}}},
		}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", googleEmbeddingsURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request; %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google embeddings request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google embeddings returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed googleEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response; %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google returned %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range parsed.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedSingle generates a vector for one text.
func (p *GoogleProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
