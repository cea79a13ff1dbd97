package parser

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/model"
)

// TextParser is the dispatch fallback: one DocumentFile node carrying the
// whole text.
type TextParser struct{}

// NewTextParser creates the plain-text fallback parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Name() string  { return "text" }
func (p *TextParser) Priority() int { return 0 }

func (p *TextParser) CanHandle(path, mimeType string) bool {
	return true
}

func (p *TextParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	g := &Graph{Metadata: model.Props{}}
	g.Nodes = append(g.Nodes, Node{
		ID:     model.ChildUUID(opts.File.UUID, model.LabelDocumentFile, path),
		Labels: []string{model.LabelDocumentFile},
		Properties: model.Props{
			model.PropName:    opts.File.Name,
			model.PropContent: string(data),
		},
	})
	return g, nil
}
