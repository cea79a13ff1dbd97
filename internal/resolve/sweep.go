package resolve

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// SweepResult reports the outcome of a pending-import sweep.
type SweepResult struct {
	Resolved  int
	Remaining int
}

const pendingEdgesQuery = `
MATCH (a)-[r:PENDING_IMPORT]->(:Project {id: $projectId})
MATCH (a)-[:DEFINED_IN]->(f:File)
RETURN a.uuid AS from, r.symbol AS symbol, r.module AS module,
       r.kind AS kind, f.uuid AS fileUuid, f.path AS filePath`

// Sweep re-attempts every pending import against the current name map.
// Resolvable edges are replaced by their concrete type in the same write;
// the rest stay in place for a later ingest. Invariant after any run: no
// PENDING_IMPORT whose named target currently exists.
func (r *Resolver) Sweep(ctx context.Context, projectID string, nm NameMap) (SweepResult, error) {
	var result SweepResult

	rows, err := r.client.Run(ctx, pendingEdgesQuery, map[string]any{"projectId": projectID})
	if err != nil {
		return result, fmt.Errorf("failed to query pending imports; %w", err)
	}
	if len(rows) == 0 {
		return result, nil
	}

	if nm == nil {
		nm, err = LoadNameMap(ctx, r.client, projectID)
		if err != nil {
			return result, err
		}
	}

	resolvedByType := make(map[string][]map[string]any)
	for _, row := range rows {
		symbol := model.Str(row["symbol"])
		module := model.Str(row["module"])
		kind := parser.ReferenceKind(model.Str(row["kind"]))
		from := model.Str(row["from"])

		edgeType, ok := refEdgeTypes[kind]
		if !ok {
			edgeType = model.EdgeConsumes
		}

		target, found := nm.Lookup(symbol, module,
			model.Str(row["filePath"]), model.Str(row["fileUuid"]))
		if !found || target.UUID == from {
			result.Remaining++
			continue
		}

		resolvedByType[edgeType] = append(resolvedByType[edgeType], map[string]any{
			"from":   from,
			"to":     target.UUID,
			"symbol": symbol,
			"module": module,
		})
		result.Resolved++
	}

	var stmts []graph.Statement
	for edgeType, rowsForType := range resolvedByType {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {uuid: row.from})-[p:PENDING_IMPORT {symbol: row.symbol, module: row.module}]->(:Project {id: $projectId})
MATCH (b {uuid: row.to})
MERGE (a)-[r:%s]->(b)
SET r.symbol = row.symbol
DELETE p`, edgeType),
			Params: map[string]any{"rows": rowsForType, "projectId": projectID},
		})
	}
	if len(stmts) > 0 {
		if _, err := r.client.WriteBatch(ctx, stmts); err != nil {
			return result, fmt.Errorf("pending import sweep failed; %w", err)
		}
	}

	r.logger.Info("pending import sweep",
		"resolved", result.Resolved, "remaining", result.Remaining)
	return result, nil
}
