package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	dataParserName     = "data"
	dataParserPriority = 50
)

// DataParser handles JSON, YAML and TOML files: one DataFile node plus one
// DataSection per top-level key, so search hits land on the relevant part of
// large config files instead of the whole blob.
type DataParser struct{}

// NewDataParser creates a data-file parser.
func NewDataParser() *DataParser {
	return &DataParser{}
}

func (p *DataParser) Name() string  { return dataParserName }
func (p *DataParser) Priority() int { return dataParserPriority }

func (p *DataParser) CanHandle(path, mimeType string) bool {
	switch mimeType {
	case "application/json", "text/yaml", "application/yaml", "application/x-yaml", "text/toml":
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

func (p *DataParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	format := dataFormat(path)

	var doc map[string]any
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &doc)
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported data format for %s", path)
	}
	if err != nil {
		// Top level may legitimately be a list or scalar; fall back to a
		// single DataFile node without sections.
		doc = nil
	}

	fileUUID := opts.File.UUID
	fileID := model.ChildUUID(fileUUID, model.LabelDataFile, path)
	g := &Graph{Metadata: model.Props{"format": format}}
	g.Nodes = append(g.Nodes, Node{
		ID:     fileID,
		Labels: []string{model.LabelDataFile},
		Properties: model.Props{
			model.PropName:    opts.File.Name,
			model.PropContent: string(data),
			"format":          format,
			"keyCount":        len(doc),
		},
	})

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rendered, renderErr := renderValue(doc[key], format)
		if renderErr != nil || strings.TrimSpace(rendered) == "" {
			continue
		}
		id := model.ChildUUID(fileUUID, model.LabelDataSection, key)
		g.Nodes = append(g.Nodes, Node{
			ID:     id,
			Labels: []string{model.LabelDataSection},
			Properties: model.Props{
				model.PropName:    key,
				model.PropContent: rendered,
				"key":             key,
				"format":          format,
			},
		})
		g.Relationships = append(g.Relationships, Relationship{
			Type: model.EdgeHasSection,
			From: fileID,
			To:   id,
		})
	}

	return g, nil
}

func dataFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

// renderValue serializes a section value back into its source format so the
// section content reads like the original file.
func renderValue(v any, format string) (string, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(v, "", "  ")
		return string(out), err
	case "toml":
		// TOML can only marshal tables at the top level; wrap scalars.
		if _, ok := v.(map[string]any); !ok {
			out, err := yaml.Marshal(v)
			return string(out), err
		}
		out, err := toml.Marshal(v)
		return string(out), err
	default:
		out, err := yaml.Marshal(v)
		return string(out), err
	}
}
