package embeddings

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codegraphhq/codegraph/internal/providers"
)

const openaiDefaultModel = "text-embedding-3-small"

// OpenAIProvider embeds through the OpenAI API.
type OpenAIProvider struct {
	apiKey      string
	model       string
	dimensions  int
	client      *openai.Client
	rateLimiter *providers.RateLimiter
}

// NewOpenAIProvider creates an OpenAI embedding provider. The API key
// defaults to OPENAI_API_KEY.
func NewOpenAIProvider(opts ...Option) *OpenAIProvider {
	o := applyOptions(opts)

	p := &OpenAIProvider{
		apiKey:     o.apiKey,
		model:      o.model,
		dimensions: o.dimensions,
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if p.model == "" {
		p.model = openaiDefaultModel
	}
	if p.dimensions == 0 {
		p.dimensions = 1536 // text-embedding-3-small default
	}

	p.client = openai.NewClient(p.apiKey)
	p.rateLimiter = providers.NewRateLimiter(p.RateLimit())
	return p
}

func (p *OpenAIProvider) Name() string         { return "openai-embeddings" }
func (p *OpenAIProvider) ProviderName() string { return "openai" }
func (p *OpenAIProvider) ModelName() string    { return p.model }
func (p *OpenAIProvider) Dimensions() int      { return p.dimensions }

func (p *OpenAIProvider) Available() bool {
	return p.apiKey != ""
}

func (p *OpenAIProvider) RateLimit() providers.RateLimitConfig {
	return providers.RateLimitConfig{RequestsPerMinute: 500, BurstSize: 50}
}

// Embed generates one vector per text in a single API call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.Available() {
		return nil, fmt.Errorf("openai embeddings provider not available; OPENAI_API_KEY not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed; %w", err)
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	if p.model == "text-embedding-3-small" || p.model == "text-embedding-3-large" {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed; %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedSingle generates a vector for one text.
func (p *OpenAIProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}
