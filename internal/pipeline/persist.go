package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// persistGraph upserts a parsed graph: one UNWIND per label for nodes, one
// per relationship shape for edges, then prunes children the reparse no
// longer produced. Every upserted node enters state linked; the preserver
// restores earned states afterwards for unchanged content.
func (p *Processor) persistGraph(ctx context.Context, projectID string, file *model.File, g *parser.Graph) error {
	now := time.Now().UnixMilli()

	nodesByLabel := make(map[string][]map[string]any)
	keep := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		label := strings.Join(n.Labels, ":")
		nodesByLabel[label] = append(nodesByLabel[label], map[string]any{
			"uuid":  n.ID,
			"props": n.Properties,
		})
		keep = append(keep, n.ID)
	}

	var stmts []graph.Statement
	for _, label := range sortedStmtKeys(nodesByLabel) {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {uuid: row.uuid})
SET n += row.props,
    n._state = 'linked',
    n._stateChangedAt = $now`, label),
			Params: map[string]any{"rows": nodesByLabel[label], "now": now},
		})
	}

	stmts = append(stmts, relationshipStatements(projectID, g.Relationships, now)...)

	// A reparse that dropped a construct must drop its node and any chunk
	// children with it.
	stmts = append(stmts, graph.Statement{
		Query: `
MATCH (n)-[:DEFINED_IN]->(f:File {uuid: $fileUuid})
WHERE NOT n.uuid IN $keep
OPTIONAL MATCH (n)-[:HAS_EMBEDDING_CHUNK]->(c:EmbeddingChunk)
DETACH DELETE n, c`,
		Params: map[string]any{"fileUuid": file.UUID, "keep": keep},
	})

	if _, err := p.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to persist parsed graph for %s; %w", file.Path, err)
	}
	return nil
}

// relationshipStatements groups edges by (type, merged-target label) so
// every statement has static type and label names.
func relationshipStatements(projectID string, rels []parser.Relationship, now int64) []graph.Statement {
	type key struct {
		relType     string
		targetLabel string
	}
	groups := make(map[key][]map[string]any)

	for _, rel := range rels {
		props := rel.Properties
		if props == nil {
			props = model.Props{}
		}
		if rel.To != "" {
			k := key{relType: rel.Type}
			groups[k] = append(groups[k], map[string]any{
				"from": rel.From, "to": rel.To, "props": props,
			})
			continue
		}
		// Merge-target edges create the shared endpoint on demand.
		k := key{relType: rel.Type, targetLabel: rel.TargetLabel}
		groups[k] = append(groups[k], map[string]any{
			"from":   rel.From,
			"target": rel.TargetProps,
			"uuid":   model.Str(rel.TargetProps[model.PropUUID]),
			"props":  props,
		})
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].relType != keys[j].relType {
			return keys[i].relType < keys[j].relType
		}
		return keys[i].targetLabel < keys[j].targetLabel
	})

	var stmts []graph.Statement
	for _, k := range keys {
		if k.targetLabel == "" {
			stmts = append(stmts, graph.Statement{
				Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {uuid: row.from})
MATCH (b {uuid: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props`, k.relType),
				Params: map[string]any{"rows": groups[k]},
			})
			continue
		}
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {uuid: row.from})
MERGE (b:%s {uuid: row.uuid})
ON CREATE SET b += row.target,
              b.projectId = $projectId,
              b._state = 'linked',
              b._stateChangedAt = $now
MERGE (a)-[r:%s]->(b)
SET r += row.props`, k.targetLabel, k.relType),
			Params: map[string]any{"rows": groups[k], "projectId": projectID, "now": now},
		})
	}
	return stmts
}

func sortedStmtKeys(m map[string][]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
