package embeddings

import (
	"fmt"

	"github.com/codegraphhq/codegraph/internal/providers"
)

// NewRegistry builds a registry holding every embedding provider variant,
// each constructed with the same options. Callers select one with
// FromRegistry and may probe the alternatives through Available.
func NewRegistry(opts ...Option) *providers.Registry {
	reg := providers.NewRegistry()
	reg.Register(NewOpenAIProvider(opts...))
	reg.Register(NewGoogleProvider(opts...))
	reg.Register(NewOllamaProvider(opts...))
	reg.Register(NewTEIProvider(opts...))
	return reg
}

// FromRegistry selects an embedding provider by its configured short name
// (openai, google, ollama, tei). Registry entries are keyed by the full
// provider name, "<short>-embeddings".
func FromRegistry(reg *providers.Registry, name string) (Provider, error) {
	p, err := reg.Get(name + "-embeddings")
	if err != nil {
		return nil, fmt.Errorf("unknown embedding provider %q; %w", name, err)
	}
	ep, ok := p.(Provider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not embed", name)
	}
	return ep, nil
}
