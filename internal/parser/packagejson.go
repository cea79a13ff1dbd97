package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	packageJSONParserName     = "package.json"
	packageJSONParserPriority = 75
)

// PackageJSONParser builds a PackageJson node plus one shared
// ExternalLibrary node per declared dependency.
type PackageJSONParser struct{}

// NewPackageJSONParser creates a package.json parser.
func NewPackageJSONParser() *PackageJSONParser {
	return &PackageJSONParser{}
}

func (p *PackageJSONParser) Name() string  { return packageJSONParserName }
func (p *PackageJSONParser) Priority() int { return packageJSONParserPriority }

func (p *PackageJSONParser) CanHandle(path, mimeType string) bool {
	return strings.EqualFold(filepath.Base(path), "package.json")
}

type packageManifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Scripts          map[string]string `json:"scripts"`
}

func (p *PackageJSONParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid package.json %s; %w", path, err)
	}

	fileUUID := opts.File.UUID
	pkgID := model.ChildUUID(fileUUID, model.LabelPackageJson, path)

	name := manifest.Name
	if name == "" {
		name = opts.File.Name
	}

	g := &Graph{Metadata: model.Props{"package": name}}
	g.Nodes = append(g.Nodes, Node{
		ID:     pkgID,
		Labels: []string{model.LabelPackageJson},
		Properties: model.Props{
			model.PropName:        name,
			model.PropContent:     string(data),
			model.PropDescription: manifest.Description,
			"version":             manifest.Version,
			"scriptCount":         len(manifest.Scripts),
		},
	})

	addDeps := func(deps map[string]string, kind string) {
		names := make([]string, 0, len(deps))
		for dep := range deps {
			names = append(names, dep)
		}
		sort.Strings(names)
		for _, dep := range names {
			g.Relationships = append(g.Relationships, Relationship{
				Type: model.EdgeUsesLibrary,
				From: pkgID,
				Properties: model.Props{
					"versionRange": deps[dep],
					"dependencyKind": kind,
				},
				TargetLabel: model.LabelExternalLibrary,
				TargetProps: model.Props{
					model.PropUUID: model.LibraryUUID(dep),
					model.PropName: dep,
					"registry":     "npm",
				},
			})
		}
	}
	addDeps(manifest.Dependencies, "runtime")
	addDeps(manifest.DevDependencies, "dev")
	addDeps(manifest.PeerDependencies, "peer")

	return g, nil
}
