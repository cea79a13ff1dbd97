package parser

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	cssParserName     = "css"
	cssParserPriority = 55
)

var cssVariableRe = regexp.MustCompile(`(--[A-Za-z0-9_-]+)\s*:\s*([^;}]+)[;}]`)

// CSSParser builds a Stylesheet node plus one CSSVariable node per custom
// property definition. Selectors and rules are not modeled; design-token
// search is the use case.
type CSSParser struct{}

// NewCSSParser creates a CSS parser.
func NewCSSParser() *CSSParser {
	return &CSSParser{}
}

func (p *CSSParser) Name() string  { return cssParserName }
func (p *CSSParser) Priority() int { return cssParserPriority }

func (p *CSSParser) CanHandle(path, mimeType string) bool {
	if mimeType == "text/css" {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".css", ".scss", ".less":
		return true
	}
	return false
}

func (p *CSSParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	text := string(data)
	fileUUID := opts.File.UUID
	sheetID := model.ChildUUID(fileUUID, model.LabelStylesheet, path)

	g := &Graph{Metadata: model.Props{}}
	g.Nodes = append(g.Nodes, Node{
		ID:     sheetID,
		Labels: []string{model.LabelStylesheet},
		Properties: model.Props{
			model.PropName:    opts.File.Name,
			model.PropContent: text,
		},
	})

	seen := make(map[string]bool)
	for _, m := range cssVariableRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		value := strings.TrimSpace(text[m[4]:m[5]])
		if seen[name] {
			// Later definitions (media queries, themes) don't create a second
			// node; first definition wins for identity.
			continue
		}
		seen[name] = true

		line := 1 + strings.Count(text[:m[0]], "\n")
		id := model.ChildUUID(fileUUID, model.LabelCSSVariable, name)
		g.Nodes = append(g.Nodes, Node{
			ID:     id,
			Labels: []string{model.LabelCSSVariable},
			Properties: model.Props{
				model.PropName:    name,
				model.PropContent: name + ": " + value,
				"value":           value,
				PropStartLine:     line,
				PropEndLine:       line,
			},
		})
		g.Relationships = append(g.Relationships, Relationship{
			Type: model.EdgeHasSection,
			From: sheetID,
			To:   id,
		})
	}

	g.Metadata["variableCount"] = len(seen)
	return g, nil
}
