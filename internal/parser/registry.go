package parser

import (
	"sort"
	"sync"
)

// Registry holds the available parsers sorted by priority. External language
// parsers register through the same interface as the built-ins.
type Registry struct {
	mu       sync.RWMutex
	parsers  []Parser
	fallback Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a parser, keeping the list sorted by priority (highest
// first).
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers = append(r.parsers, p)
	sort.SliceStable(r.parsers, func(i, j int) bool {
		return r.parsers[i].Priority() > r.parsers[j].Priority()
	})
}

// SetFallback sets the parser used when nothing else matches.
func (r *Registry) SetFallback(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// Get returns the highest-priority parser claiming the file, or the
// fallback.
func (r *Registry) Get(path, mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.parsers {
		if p.CanHandle(path, mimeType) {
			return p
		}
	}
	return r.fallback
}

// List returns the registered parsers in priority order.
func (r *Registry) List() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Parser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers. Priorities
// encode the dispatch order: binary documents first, structured text next,
// plain text as the fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewPDFParser())         // 90: binary document
	r.Register(NewDOCXParser())        // 89: binary document
	r.Register(NewPackageJSONParser()) // 75: before generic data
	r.Register(NewMarkdownParser())    // 70
	r.Register(NewScriptParser())      // 65: js/ts scopes
	r.Register(NewVueParser())         // 64
	r.Register(NewSvelteParser())      // 63
	r.Register(NewHTMLParser())        // 60
	r.Register(NewCSSParser())         // 55
	r.Register(NewDataParser())        // 50: json/yaml/toml
	r.Register(NewMediaParser())       // 20: metadata only

	r.SetFallback(NewTextParser())
	return r
}
