// Package resolve turns symbolic references from parsed files into concrete
// graph edges, parking the unresolvable ones as PENDING_IMPORT edges until
// their target appears.
package resolve

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Candidate is one scope a name may resolve to.
type Candidate struct {
	UUID     string
	FileUUID string
	FilePath string
	Type     string
}

// NameMap is the project-wide mapping from scope name to its candidates.
type NameMap map[string][]Candidate

const nameMapQuery = `
MATCH (s:Scope)-[:DEFINED_IN]->(f:File {projectId: $projectId})
RETURN s._name AS name, s.uuid AS uuid, s.type AS type,
       f.uuid AS fileUuid, f.path AS filePath`

// LoadNameMap reads every scope of the project.
func LoadNameMap(ctx context.Context, client graph.Client, projectID string) (NameMap, error) {
	rows, err := client.Run(ctx, nameMapQuery, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to load name map; %w", err)
	}

	nm := make(NameMap, len(rows))
	for _, row := range rows {
		name := model.Str(row["name"])
		if name == "" {
			continue
		}
		nm[name] = append(nm[name], Candidate{
			UUID:     model.Str(row["uuid"]),
			FileUUID: model.Str(row["fileUuid"]),
			FilePath: model.Str(row["filePath"]),
			Type:     model.Str(row["type"]),
		})
	}
	return nm, nil
}

// Add registers a freshly parsed scope so references within the same pass
// can resolve against it before it is queryable.
func (nm NameMap) Add(name string, c Candidate) {
	for _, existing := range nm[name] {
		if existing.UUID == c.UUID {
			return
		}
	}
	nm[name] = append(nm[name], c)
}

// valueKinds carry a value; type-only kinds lose resolution tie-breaks.
var valueKinds = map[string]bool{
	"function": true,
	"method":   true,
	"class":    true,
	"const":    true,
	"variable": true,
	"module":   true,
}

// Lookup resolves a name. Tie-breaks: module-path match when the reference
// carries an import specifier, then same-file, then value kinds over
// type-only kinds. An ambiguous result stays unresolved.
func (nm NameMap) Lookup(name, module, fromFilePath, fromFileUUID string) (Candidate, bool) {
	candidates := nm[name]
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	if module != "" {
		if target := resolveModulePath(fromFilePath, module); target != "" {
			var matched []Candidate
			for _, c := range candidates {
				if stripExt(c.FilePath) == target {
					matched = append(matched, c)
				}
			}
			if len(matched) == 1 {
				return matched[0], true
			}
			if len(matched) > 1 {
				candidates = matched
			}
		}
	}

	var sameFile []Candidate
	for _, c := range candidates {
		if c.FileUUID == fromFileUUID {
			sameFile = append(sameFile, c)
		}
	}
	if len(sameFile) == 1 {
		return sameFile[0], true
	}

	var values []Candidate
	for _, c := range candidates {
		if valueKinds[c.Type] {
			values = append(values, c)
		}
	}
	if len(values) == 1 {
		return values[0], true
	}

	return Candidate{}, false
}

// resolveModulePath normalizes a relative import specifier against the
// importing file's path. Bare specifiers (npm packages) return "".
func resolveModulePath(fromFilePath, module string) string {
	if !strings.HasPrefix(module, ".") {
		return ""
	}
	dir := path.Dir(fromFilePath)
	return stripExt(path.Clean(path.Join(dir, module)))
}

func stripExt(p string) string {
	if idx := strings.LastIndex(path.Base(p), "."); idx > 0 {
		return p[:len(p)-(len(path.Base(p))-idx)]
	}
	return p
}
