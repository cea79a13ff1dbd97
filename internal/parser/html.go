package parser

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	htmlParserName     = "html"
	htmlParserPriority = 60
)

var (
	htmlTitleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlHrefRe   = regexp.MustCompile(`(?i)<a\s[^>]*href=["']([^"'#][^"']*)["']`)
	htmlImgRe    = regexp.MustCompile(`(?i)<img\s[^>]*src=["']([^"']+)["']`)
	htmlScriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlSpaceRe  = regexp.MustCompile(`[ \t]+`)
)

// HTMLParser builds a WebDocument node with the visible text as content and
// records outbound links and image references.
type HTMLParser struct{}

// NewHTMLParser creates an HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Name() string  { return htmlParserName }
func (p *HTMLParser) Priority() int { return htmlParserPriority }

func (p *HTMLParser) CanHandle(path, mimeType string) bool {
	if mimeType == "text/html" {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func (p *HTMLParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	raw := string(data)
	fileUUID := opts.File.UUID
	docID := model.ChildUUID(fileUUID, model.LabelWebDocument, path)

	title := opts.File.Name
	if m := htmlTitleRe.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			title = t
		}
	}

	g := &Graph{Metadata: model.Props{"title": title}}
	g.Nodes = append(g.Nodes, Node{
		ID:     docID,
		Labels: []string{model.LabelWebDocument},
		Properties: model.Props{
			model.PropName:    title,
			model.PropContent: extractVisibleText(raw),
		},
	})

	seen := make(map[string]bool)
	for _, m := range htmlHrefRe.FindAllStringSubmatch(raw, -1) {
		url := m[1]
		if seen["a:"+url] {
			continue
		}
		seen["a:"+url] = true
		g.Relationships = append(g.Relationships, Relationship{
			Type:        model.EdgeLinksTo,
			From:        docID,
			TargetLabel: model.LabelExternalURL,
			TargetProps: model.Props{
				model.PropUUID: model.URLUUID(url),
				"url":          url,
				model.PropName: url,
			},
		})
	}
	for _, m := range htmlImgRe.FindAllStringSubmatch(raw, -1) {
		src := m[1]
		if seen["img:"+src] {
			continue
		}
		seen["img:"+src] = true
		g.Relationships = append(g.Relationships, Relationship{
			Type:        model.EdgeReferencesImage,
			From:        docID,
			TargetLabel: model.LabelExternalURL,
			TargetProps: model.Props{
				model.PropUUID: model.URLUUID(src),
				"url":          src,
				model.PropName: src,
			},
		})
	}

	return g, nil
}

// extractVisibleText strips script/style blocks and tags, collapsing
// whitespace. Good enough for search text; not a DOM renderer.
func extractVisibleText(raw string) string {
	text := htmlScriptRe.ReplaceAllString(raw, " ")
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(htmlSpaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
