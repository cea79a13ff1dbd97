package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codegraphhq/codegraph/internal/ingest"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Dispatcher routes file bytes to the right parser and normalizes the
// result. Every node leaving the dispatcher carries uuid, projectId,
// fileUuid, a display _name and, when it has content, a _contentHash; every
// node is wired to its File with DEFINED_IN.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRegistry replaces the default parser registry.
func WithRegistry(r *Registry) DispatcherOption {
	return func(d *Dispatcher) {
		d.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher over the default registry.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: DefaultRegistry(),
		logger:   slog.Default().With("component", "parser"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const probePeekBytes = 512

// Parse type-detects the file and runs the matching parser.
func (d *Dispatcher) Parse(ctx context.Context, projectID string, file *model.File, data []byte) (*Graph, error) {
	peek := data
	if len(peek) > probePeekBytes {
		peek = peek[:probePeekBytes]
	}
	_, mimeType, _ := ingest.Probe(file.Path, peek)

	p := d.registry.Get(file.Path, mimeType)
	if p == nil {
		return nil, fmt.Errorf("no parser for %s (%s)", file.Path, mimeType)
	}

	graph, err := p.Parse(ctx, file.Path, data, Options{ProjectID: projectID, File: file})
	if err != nil {
		return nil, fmt.Errorf("%s parse of %s failed; %w", p.Name(), file.Path, err)
	}

	d.normalize(graph, projectID, file, p.Name())
	d.logger.Debug("parsed file",
		"path", file.Path, "parser", p.Name(),
		"nodes", len(graph.Nodes), "relationships", len(graph.Relationships))
	return graph, nil
}

// normalize stamps ownership and identity properties and wires every node to
// its File. Parsers stay free of this bookkeeping.
func (d *Dispatcher) normalize(g *Graph, projectID string, file *model.File, parserName string) {
	if g.Metadata == nil {
		g.Metadata = model.Props{}
	}
	g.Metadata["parser"] = parserName

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Properties == nil {
			n.Properties = model.Props{}
		}
		n.Properties[model.PropUUID] = n.ID
		n.Properties[model.PropProjectID] = projectID
		n.Properties[PropFileUUID] = file.UUID

		if model.Str(n.Properties[model.PropName]) == "" {
			n.Properties[model.PropName] = file.Name
		}
		if content := model.Str(n.Properties[model.PropContent]); content != "" {
			n.Properties[model.PropContentHash] = Hash16ContentString(content)
		}

		g.Relationships = append(g.Relationships, Relationship{
			Type: model.EdgeDefinedIn,
			From: n.ID,
			To:   file.UUID,
		})
	}
}

// Hash16ContentString is the canonical content hash for node _content.
func Hash16ContentString(s string) string {
	return model.Hash16String(s)
}
