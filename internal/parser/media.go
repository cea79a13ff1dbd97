package parser

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/ingest"
	"github.com/codegraphhq/codegraph/internal/model"
)

// MediaParser produces a metadata-only MediaFile node for images, audio and
// video. Only the name view applies; there is no text content.
type MediaParser struct{}

// NewMediaParser creates a media parser.
func NewMediaParser() *MediaParser {
	return &MediaParser{}
}

func (p *MediaParser) Name() string  { return "media" }
func (p *MediaParser) Priority() int { return 20 }

func (p *MediaParser) CanHandle(path, mimeType string) bool {
	kind, _, _ := ingest.Probe(path, nil)
	return kind == ingest.KindImage || kind == ingest.KindMedia
}

func (p *MediaParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	_, mimeType, _ := ingest.Probe(path, nil)
	g := &Graph{Metadata: model.Props{}}
	g.Nodes = append(g.Nodes, Node{
		ID:     model.ChildUUID(opts.File.UUID, model.LabelMediaFile, path),
		Labels: []string{model.LabelMediaFile},
		Properties: model.Props{
			model.PropName: opts.File.Name,
			"mimeType":     mimeType,
			"sizeBytes":    len(data),
		},
	})
	return g, nil
}
