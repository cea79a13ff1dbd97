// Package embeddings implements the embedding provider variants: a cloud
// provider (OpenAI), a second cloud provider (Google), a local runtime
// (Ollama) and an on-prem inference server (TEI). All produce
// fixed-dimension vectors; the dimension is discovered once per provider and
// used to provision vector indexes.
package embeddings

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/providers"
)

// Provider generates vector embeddings from text.
type Provider interface {
	providers.Provider

	// Embed generates one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates a vector for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// ProviderName identifies the backend, recorded on every embedded node.
	ProviderName() string

	// ModelName identifies the model, recorded on every embedded node.
	ModelName() string

	// Dimensions returns the vector dimensionality.
	Dimensions() int
}

// embedSingle implements EmbedSingle in terms of Embed for providers whose
// API has no single-text shortcut.
func embedSingle(ctx context.Context, p Provider, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

// New builds a provider by name. Recognized names: openai, google, ollama,
// tei.
func New(name string, opts ...Option) (Provider, error) {
	return FromRegistry(NewRegistry(opts...), name)
}

// Option is a shared functional option applied by every provider
// constructor; unknown fields are ignored by providers they don't apply to.
type Option func(*options)

type options struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
}

// WithAPIKey sets the API key (cloud providers).
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithDimensions overrides the vector dimensionality.
func WithDimensions(dims int) Option {
	return func(o *options) { o.dimensions = dims }
}

// WithBaseURL overrides the endpoint (local and on-prem providers).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
