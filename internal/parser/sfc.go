package parser

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Single-file components (Vue, Svelte): one component node for the file,
// scopes extracted from the script block, css variables from the style
// block.

var (
	sfcScriptRe = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	sfcStyleRe  = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	sfcLangRe   = regexp.MustCompile(`(?i)lang=["']?(ts|typescript)["']?`)
)

// VueParser handles .vue single-file components.
type VueParser struct{}

// NewVueParser creates a Vue SFC parser.
func NewVueParser() *VueParser {
	return &VueParser{}
}

func (p *VueParser) Name() string  { return "vue" }
func (p *VueParser) Priority() int { return 64 }

func (p *VueParser) CanHandle(path, mimeType string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".vue"
}

func (p *VueParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	return parseSFC(path, string(data), model.LabelVueSFC, opts)
}

// SvelteParser handles .svelte components.
type SvelteParser struct{}

// NewSvelteParser creates a Svelte parser.
func NewSvelteParser() *SvelteParser {
	return &SvelteParser{}
}

func (p *SvelteParser) Name() string  { return "svelte" }
func (p *SvelteParser) Priority() int { return 63 }

func (p *SvelteParser) CanHandle(path, mimeType string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".svelte"
}

func (p *SvelteParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	return parseSFC(path, string(data), model.LabelSvelteComponent, opts)
}

func parseSFC(path, text, label string, opts Options) (*Graph, error) {
	fileUUID := opts.File.UUID
	componentName := strings.TrimSuffix(opts.File.Name, filepath.Ext(opts.File.Name))
	componentID := model.ChildUUID(fileUUID, label, path)

	g := &Graph{Metadata: model.Props{}}
	g.Nodes = append(g.Nodes, Node{
		ID:     componentID,
		Labels: []string{label},
		Properties: model.Props{
			model.PropName:    componentName,
			model.PropContent: text,
		},
	})

	if m := sfcScriptRe.FindStringSubmatchIndex(text); m != nil {
		script := text[m[2]:m[3]]
		language := "javascript"
		openTag := text[m[0]:m[2]]
		if sfcLangRe.MatchString(openTag) {
			language = "typescript"
		}
		offset := strings.Count(text[:m[2]], "\n")

		scriptGraph, err := parseScriptAt(path, script, language, opts, offset)
		if err == nil {
			mergeComponentScript(g, componentID, scriptGraph)
		}
	}

	for _, m := range sfcStyleRe.FindAllStringSubmatch(text, -1) {
		for _, vm := range cssVariableRe.FindAllStringSubmatch(m[1], -1) {
			name := vm[1]
			id := model.ChildUUID(fileUUID, model.LabelCSSVariable, name)
			g.Nodes = append(g.Nodes, Node{
				ID:     id,
				Labels: []string{model.LabelCSSVariable},
				Properties: model.Props{
					model.PropName:    name,
					model.PropContent: name + ": " + strings.TrimSpace(vm[2]),
					"value":           strings.TrimSpace(vm[2]),
				},
			})
			g.Relationships = append(g.Relationships, Relationship{
				Type: model.EdgeHasSection,
				From: componentID,
				To:   id,
			})
		}
	}

	return g, nil
}

// mergeComponentScript folds the script-block scopes into the component
// graph, rewiring the synthetic module scope to the component node itself.
func mergeComponentScript(g *Graph, componentID string, script *Graph) {
	var moduleID string
	for _, n := range script.Nodes {
		if model.Str(n.Properties["type"]) == "module" {
			moduleID = n.ID
			continue
		}
		g.Nodes = append(g.Nodes, n)
	}

	remap := func(id string) string {
		if id == moduleID {
			return componentID
		}
		return id
	}
	for _, rel := range script.Relationships {
		rel.From = remap(rel.From)
		rel.To = remap(rel.To)
		g.Relationships = append(g.Relationships, rel)
	}
	for _, ref := range script.References {
		ref.FromID = remap(ref.FromID)
		g.References = append(g.References, ref)
	}
}
