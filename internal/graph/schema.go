package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Schema constraints and indexes. Safe to run repeatedly; every statement is
// IF NOT EXISTS.

func uuidConstraint(label string) string {
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s_uuid_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.uuid IS UNIQUE",
		strings.ToLower(label), label)
}

// propertyIndexes are lookup indexes for the hot pipeline queries.
var propertyIndexes = []string{
	"CREATE INDEX file_state_idx IF NOT EXISTS FOR (f:File) ON (f._state)",
	"CREATE INDEX file_project_idx IF NOT EXISTS FOR (f:File) ON (f.projectId)",
	"CREATE INDEX file_path_idx IF NOT EXISTS FOR (f:File) ON (f.path)",
	"CREATE INDEX scope_name_idx IF NOT EXISTS FOR (s:Scope) ON (s._name)",
	"CREATE INDEX scope_state_idx IF NOT EXISTS FOR (s:Scope) ON (s._state)",
	"CREATE INDEX entity_type_idx IF NOT EXISTS FOR (e:Entity) ON (e.entityType)",
	"CREATE INDEX chunk_parent_idx IF NOT EXISTS FOR (c:EmbeddingChunk) ON (c.parentUuid)",
	"CREATE INDEX directory_path_idx IF NOT EXISTS FOR (d:Directory) ON (d.path)",
}

// InitSchema creates uuid uniqueness constraints for every label plus the
// property indexes. Failures are logged and skipped; an index that already
// exists under another name is not fatal.
func InitSchema(ctx context.Context, client Client) error {
	labels := append([]string{
		model.LabelProject,
		model.LabelFile,
		model.LabelDirectory,
		model.LabelEmbeddingChunk,
	}, model.ContentLabels...)

	var stmts []Statement
	for _, label := range labels {
		stmts = append(stmts, Statement{Query: uuidConstraint(label)})
	}
	for _, q := range propertyIndexes {
		stmts = append(stmts, Statement{Query: q})
	}

	for _, stmt := range stmts {
		if _, err := client.Write(ctx, stmt.Query, nil); err != nil {
			// Existing conflicting schema objects are not fatal.
			continue
		}
	}
	return nil
}

// EnsureVectorIndex provisions one cosine vector index per (label, property).
func (c *Neo4jClient) EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error {
	name := fmt.Sprintf("%s_%s_vec", strings.ToLower(label), strings.ToLower(property))
	query := fmt.Sprintf(`
CREATE VECTOR INDEX %s IF NOT EXISTS
FOR (n:%s) ON (n.%s)
OPTIONS { indexConfig: {
  `+"`vector.dimensions`"+`: $dimension,
  `+"`vector.similarity_function`"+`: 'cosine'
}}`, name, label, property)

	if _, err := c.Write(ctx, query, map[string]any{"dimension": dimension}); err != nil {
		return fmt.Errorf("failed to create vector index %s; %w", name, err)
	}
	c.logger.Debug("vector index ensured",
		"label", label, "property", property, "dimension", dimension)
	return nil
}
